// Package node is the main service which launches a town node and manages
// the lifecycle of all its associated services at runtime, such as the
// simulation engines, agent runners, and the HTTP API, gracefully closing
// them if the process ends.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/aitownlabs/aitown/agent"
	"github.com/aitownlabs/aitown/cmd"
	"github.com/aitownlabs/aitown/cmd/townd/flags"
	"github.com/aitownlabs/aitown/config/features"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/db/kv"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/llm"
	"github.com/aitownlabs/aitown/monitoring/backup"
	"github.com/aitownlabs/aitown/monitoring/prometheus"
	"github.com/aitownlabs/aitown/rpc"
	"github.com/aitownlabs/aitown/runtime"
	"github.com/aitownlabs/aitown/runtime/debug"
	"github.com/aitownlabs/aitown/runtime/prereqs"
	"github.com/aitownlabs/aitown/runtime/version"
	"github.com/aitownlabs/aitown/town"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// TownNode defines a struct that handles the services running a persistent
// AI town simulation. It handles the lifecycle of the entire system and
// registers services to a service registry.
type TownNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	services *runtime.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{} // Channel to wait for termination notifications.
	db       db.Database
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*TownNode, error) {
	if err := configureTracing(cliCtx); err != nil {
		return nil, err
	}
	prereqs.WarnIfPlatformNotSupported(cliCtx.Context)
	if err := features.ConfigureTownNode(cliCtx); err != nil {
		return nil, err
	}
	configureTownConfig(cliCtx)

	registry := runtime.NewServiceRegistry()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	townNode := &TownNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		services: registry,
		stop:     make(chan struct{}),
	}

	if err := townNode.startDB(cliCtx); err != nil {
		return nil, err
	}

	if err := townNode.registerEngineService(); err != nil {
		return nil, err
	}

	if err := townNode.registerTownService(); err != nil {
		return nil, err
	}

	lm, err := newLanguageModel(cliCtx)
	if err != nil {
		return nil, err
	}

	if err := townNode.registerAgentService(lm); err != nil {
		return nil, err
	}

	if err := townNode.registerRPCService(cliCtx, lm); err != nil {
		return nil, err
	}

	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		if err := townNode.registerPrometheusService(cliCtx); err != nil {
			return nil, err
		}
	}

	return townNode, nil
}

// Start the TownNode and kicks off every registered service.
func (t *TownNode) Start() {
	t.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.GetVersion(),
	}).Info("Starting town node")

	t.services.StartAll()

	stop := t.stop
	t.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		debug.Exit(t.cliCtx) // Ensure trace and CPU profile data are flushed.
		go t.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic.")
			}
		}
		panic("Panic closing the town node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (t *TownNode) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()

	log.Info("Stopping town node")
	t.services.StopAll()
	if err := t.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
	t.cancel()
	close(t.stop)
}

func (t *TownNode) startDB(cliCtx *cli.Context) error {
	baseDir := cliCtx.String(cmd.DataDirFlag.Name)
	dbPath := filepath.Join(baseDir, kv.TownNodeDbDirName)
	clearDB := cliCtx.Bool(cmd.ClearDB.Name)
	forceClearDB := cliCtx.Bool(cmd.ForceClearDB.Name)

	log.WithField("database-path", dbPath).Info("Checking DB")

	d, err := db.NewDB(t.ctx, dbPath)
	if err != nil {
		return err
	}
	clearDBConfirmed := false
	if clearDB && !forceClearDB {
		actionText := "This will delete your town database stored in your data directory. " +
			"Your database backups will not be removed - do you want to proceed? (Y/N)"
		deniedText := "Database will not be deleted. No changes have been made."
		clearDBConfirmed, err = cmd.ConfirmAction(actionText, deniedText)
		if err != nil {
			return err
		}
	}
	if clearDBConfirmed || forceClearDB {
		log.Warning("Removing database")
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
		d, err = db.NewDB(t.ctx, dbPath)
		if err != nil {
			return errors.Wrap(err, "could not create new database")
		}
	}
	if info, err := os.Stat(kv.KVStoreDatafilePath(dbPath)); err == nil {
		log.WithField("size", humanize.Bytes(uint64(info.Size()))).Info("Opened town database")
	}

	t.db = d
	return nil
}

// newLanguageModel builds the shared OpenAI-compatible client used by the
// agent loops and the chat moderator. Nodes running with both agents and
// moderation disabled have no use for it and skip the API key requirement.
func newLanguageModel(cliCtx *cli.Context) (*llm.Client, error) {
	cfg := features.Get()
	if cfg.DisableAgents && cfg.DisableModeration {
		return nil, nil
	}
	var opts []llm.ClientOpt
	if key := cliCtx.String(flags.OpenAIAPIKeyFlag.Name); key != "" {
		opts = append(opts, llm.WithAPIKey(key))
	}
	if model := cliCtx.String(flags.ChatModelFlag.Name); model != "" {
		opts = append(opts, llm.WithChatModel(model))
	}
	if model := cliCtx.String(flags.EmbeddingModelFlag.Name); model != "" {
		opts = append(opts, llm.WithEmbeddingModel(model))
	}
	return llm.NewClient(cliCtx.String(flags.LLMHostFlag.Name), opts...)
}

func (t *TownNode) registerEngineService() error {
	maxRoutines := t.cliCtx.Int(cmd.MaxGoroutines.Name)
	svc, err := engine.NewService(
		t.ctx,
		engine.WithDatabase(t.db),
		engine.WithGameLoader(town.NewLoader(t.db)),
		engine.WithMaxGoroutines(maxRoutines),
	)
	if err != nil {
		return err
	}
	return t.services.RegisterService(svc)
}

func (t *TownNode) registerTownService() error {
	var engineSvc *engine.Service
	if err := t.services.FetchService(&engineSvc); err != nil {
		return err
	}
	svc, err := town.NewService(
		t.ctx,
		town.WithDatabase(t.db),
		town.WithEngines(engineSvc),
	)
	if err != nil {
		return err
	}
	return t.services.RegisterService(svc)
}

func (t *TownNode) registerAgentService(lm *llm.Client) error {
	if features.Get().DisableAgents {
		log.Warn("Agent loops disabled, characters will only act on player inputs")
		return nil
	}
	var engineSvc *engine.Service
	if err := t.services.FetchService(&engineSvc); err != nil {
		return err
	}
	svc, err := agent.New(t.ctx, &agent.ServiceConfig{
		Database: t.db,
		Inputs:   engineSvc,
		Notifier: engineSvc,
		LLM:      lm,
	})
	if err != nil {
		return err
	}
	return t.services.RegisterService(svc)
}

func (t *TownNode) registerRPCService(cliCtx *cli.Context, lm *llm.Client) error {
	var engineSvc *engine.Service
	if err := t.services.FetchService(&engineSvc); err != nil {
		return err
	}
	var townSvc *town.Service
	if err := t.services.FetchService(&townSvc); err != nil {
		return err
	}

	host := cliCtx.String(flags.HTTPHost.Name)
	port := cliCtx.Int(flags.HTTPPort.Name)
	allowedOrigins := strings.Split(cliCtx.String(flags.HTTPCorsDomain.Name), ",")

	opts := []rpc.Option{
		rpc.WithHTTPAddr(fmt.Sprintf("%s:%d", host, port)),
		rpc.WithAllowedOrigins(allowedOrigins),
		rpc.WithDatabase(t.db),
		rpc.WithInputSubmitter(engineSvc),
		rpc.WithTownService(townSvc),
		rpc.WithNotifier(engineSvc),
	}
	if !features.Get().DisableModeration {
		opts = append(opts, rpc.WithModerator(lm))
	}
	svc, err := rpc.New(t.ctx, opts...)
	if err != nil {
		return err
	}
	return t.services.RegisterService(svc)
}

func (t *TownNode) registerPrometheusService(cliCtx *cli.Context) error {
	var additionalHandlers []prometheus.Handler
	if cliCtx.IsSet(cmd.EnableBackupWebhookFlag.Name) {
		additionalHandlers = append(
			additionalHandlers,
			prometheus.Handler{
				Path:    "/db/backup",
				Handler: backup.Handler(t.db, cliCtx.String(cmd.BackupWebhookOutputDir.Name)),
			},
		)
	}

	service := prometheus.NewService(
		fmt.Sprintf("%s:%d", cliCtx.String(cmd.MonitoringHostFlag.Name), cliCtx.Int(flags.MonitoringPortFlag.Name)),
		t.services,
		additionalHandlers...,
	)
	hook := prometheus.NewLogrusCollector()
	logrus.AddHook(hook)
	return t.services.RegisterService(service)
}
