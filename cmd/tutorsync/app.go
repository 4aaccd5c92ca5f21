package main

import (
	"go.uber.org/zap"

	"github.com/tutordesk/tutorsync/internal/adapter"
	"github.com/tutordesk/tutorsync/internal/api"
	"github.com/tutordesk/tutorsync/internal/config"
	"github.com/tutordesk/tutorsync/internal/identity"
	"github.com/tutordesk/tutorsync/internal/logging"
	"github.com/tutordesk/tutorsync/internal/netwatch"
	"github.com/tutordesk/tutorsync/internal/store"
	"github.com/tutordesk/tutorsync/internal/syncer"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	client  *api.Client
	who     *identity.Resolver
	monitor *netwatch.Monitor
	syncer  *syncer.Syncer
}

// newApp loads config, opens the local database and wires the sync engine.
// Flags override config file and environment values.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}

	logger := logging.New(cfg.Environment, cfg.LogFile)

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.ServerURL, cfg.RequestTimeout, logger)
	who := identity.NewResolver(st.Users())
	monitor := netwatch.NewWithConfig(cfg.ServerURL, &netwatch.Config{
		Interval: cfg.ProbeInterval,
		Logger:   logger,
	})

	deps := adapter.Deps{
		API:    client,
		Store:  st,
		Who:    who,
		Online: monitor.IsOnline,
		Logger: logger,
	}
	sy := syncer.New(adapter.All(deps), st, monitor, &syncer.Config{
		SyncInterval: cfg.SyncInterval,
		Logger:       logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		client:  client,
		who:     who,
		monitor: monitor,
		syncer:  sy,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}
