package engine

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/thomaso-mirodin/intmath/i64"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/types"
)

// runStep executes one scheduled step: drain due inputs in number order,
// advance the simulation tick by tick, and commit everything atomically
// together with the next self-schedule. A step whose generation has been
// superseded, or whose commit loses a race, exits without effect.
func (s *Service) runStep(ctx context.Context, engineID types.ID, generation uint64) error {
	ctx, span := trace.StartSpan(ctx, "engine.runStep")
	defer span.End()

	cfg := params.TownConfig()
	eng, err := s.cfg.db.Engine(ctx, engineID)
	if err != nil {
		return err
	}
	if eng.State != types.EngineRunning || eng.GenerationNumber != generation {
		stepsFencedCounter.Inc()
		log.WithField("engine", engineID).WithField("generation", generation).Debug("Discarding superseded step")
		return nil
	}
	prev := *eng

	now := s.nowMillis()
	window := i64.Min(int64(cfg.MaxStepMillis), now-eng.LastStepTs)
	if window < 0 {
		window = 0
	}
	deadline := eng.LastStepTs + window

	game, err := s.cfg.loader.LoadGame(ctx, engineID)
	if err != nil {
		return errors.Wrapf(err, "could not load game for engine %s", engineID)
	}

	var processed []*types.Input
	for {
		input, err := s.cfg.db.NextInput(ctx, engineID, eng.ProcessedInputNumber+1)
		if err != nil {
			return err
		}
		if input == nil || input.ReceivedTs > deadline {
			break
		}
		value, err := applyInput(ctx, game, input)
		if err != nil {
			input.ReturnValue = &types.ReturnValue{Kind: types.ReturnError, Message: err.Error()}
			inputsProcessedCounter.WithLabelValues("error").Inc()
		} else {
			input.ReturnValue = &types.ReturnValue{Kind: types.ReturnOk, Value: value}
			inputsProcessedCounter.WithLabelValues("ok").Inc()
		}
		processed = append(processed, input)
		eng.ProcessedInputNumber = input.Number
	}

	tick := int64(cfg.TickMillis)
	for ts := eng.LastStepTs + tick; ts <= deadline; ts += tick {
		if err := game.Tick(ctx, ts); err != nil {
			return errors.Wrapf(err, "tick at %d", ts)
		}
		tickRate.Incr(1)
	}

	delta, err := game.Delta()
	if err != nil {
		return errors.Wrap(err, "could not drain step delta")
	}

	eng.LastStepTs = deadline
	eng.CurrentTime = deadline
	eng.ScheduledSelfTs = deadline + int64(cfg.StepIntervalMillis)
	next := &types.ScheduledTask{
		EngineID:   engineID,
		Generation: eng.GenerationNumber,
		RunAt:      eng.ScheduledSelfTs,
	}
	if err := s.cfg.db.CommitStep(ctx, &prev, eng, processed, delta, next); err != nil {
		if errors.Is(err, db.ErrStoreConflict) {
			stepsFencedCounter.Inc()
			log.WithField("engine", engineID).Debug("Step commit lost against a newer generation")
			return nil
		}
		return err
	}
	s.sched.arm(next)

	stepsCompletedCounter.Inc()
	stepWindowMillis.Observe(float64(window))
	// The event brackets the simulated window of this step: prev.LastStepTs
	// is where the previous step left the cursor, CurrentTime is where this
	// one did. Clients turn the pair into an interpolation interval.
	s.statusFeed.Send(&StatusEvent{
		EngineID:             engineID,
		GenerationNumber:     eng.GenerationNumber,
		CurrentTime:          eng.CurrentTime,
		LastStepTs:           prev.LastStepTs,
		ProcessedInputNumber: eng.ProcessedInputNumber,
	})
	return nil
}

// applyInput shields the step from a panicking input handler: the panic
// becomes that input's error result instead of killing the whole step.
func applyInput(ctx context.Context, game Game, input *types.Input) (value jsoniter.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("input %s panicked: %v", input.Name, r)
		}
	}()
	return game.ApplyInput(ctx, input)
}
