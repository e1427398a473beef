package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	jsoniter "github.com/json-iterator/go"
	logTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/aitownlabs/aitown/db"
	dbtest "github.com/aitownlabs/aitown/db/testing"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

type submittedInput struct {
	engineID types.ID
	name     string
	args     string
}

type fakeInputs struct {
	submitted []submittedInput
}

func (f *fakeInputs) InsertInput(_ context.Context, engineID types.ID, name string, args jsoniter.RawMessage) (*types.Input, error) {
	f.submitted = append(f.submitted, submittedInput{engineID: engineID, name: name, args: string(args)})
	return &types.Input{ID: "i1", EngineID: engineID, Name: name, Args: args}, nil
}

type fakeTowns struct {
	heartbeats []types.ID
}

func (f *fakeTowns) Heartbeat(_ context.Context, worldID types.ID) error {
	f.heartbeats = append(f.heartbeats, worldID)
	return nil
}

type fakeModerator struct {
	flagged bool
	err     error
	texts   []string
}

func (f *fakeModerator) Moderate(_ context.Context, text string) (bool, error) {
	f.texts = append(f.texts, text)
	return f.flagged, f.err
}

type fakeNotifier struct {
	feed event.Feed
}

func (f *fakeNotifier) StatusFeed() *event.Feed {
	return &f.feed
}

type testHarness struct {
	srv       *Server
	database  db.Database
	inputs    *fakeInputs
	towns     *fakeTowns
	moderator *fakeModerator
	notifier  *fakeNotifier
}

func setupServer(t *testing.T, opts ...Option) *testHarness {
	h := &testHarness{
		database:  dbtest.SetupDB(t),
		inputs:    &fakeInputs{},
		towns:     &fakeTowns{},
		moderator: &fakeModerator{},
		notifier:  &fakeNotifier{},
	}
	opts = append([]Option{
		WithDatabase(h.database),
		WithInputSubmitter(h.inputs),
		WithTownService(h.towns),
		WithNotifier(h.notifier),
		WithModerator(h.moderator),
	}, opts...)
	srv, err := New(context.Background(), opts...)
	require.NoError(t, err)
	h.srv = srv
	return h
}

func TestNew_MissingCollaborators(t *testing.T) {
	database := dbtest.SetupDB(t)
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{
			name:    "no database",
			opts:    []Option{WithInputSubmitter(&fakeInputs{}), WithTownService(&fakeTowns{}), WithNotifier(&fakeNotifier{})},
			wantErr: "database option not configured",
		},
		{
			name:    "no input submitter",
			opts:    []Option{WithDatabase(database), WithTownService(&fakeTowns{}), WithNotifier(&fakeNotifier{})},
			wantErr: "input submitter option not configured",
		},
		{
			name:    "no town service",
			opts:    []Option{WithDatabase(database), WithInputSubmitter(&fakeInputs{}), WithNotifier(&fakeNotifier{})},
			wantErr: "town service option not configured",
		},
		{
			name:    "no notifier",
			opts:    []Option{WithDatabase(database), WithInputSubmitter(&fakeInputs{}), WithTownService(&fakeTowns{})},
			wantErr: "notifier option not configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts...)
			require.ErrorContains(t, tt.wantErr, err)
		})
	}
}

func TestNew_Customized(t *testing.T) {
	h := setupServer(t, WithHTTPAddr("127.0.0.1:3000"), WithAllowedOrigins([]string{"http://localhost:5173"}))
	require.Equal(t, "127.0.0.1:3000", h.srv.cfg.httpAddr)
	require.Equal(t, 1, len(h.srv.cfg.allowedOrigins))
	require.Equal(t, "http://localhost:5173", h.srv.cfg.allowedOrigins[0])
	require.NotNil(t, h.srv.router)
}

func TestServer_StartStop(t *testing.T) {
	hook := logTest.NewGlobal()
	h := setupServer(t, WithHTTPAddr("127.0.0.1:0"))

	h.srv.Start()
	time.Sleep(50 * time.Millisecond)
	require.LogsContain(t, hook, "Starting HTTP server")
	require.NoError(t, h.srv.Status())
	require.NoError(t, h.srv.Stop())
}
