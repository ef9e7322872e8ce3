package main

//	@title			Radio Revive Console API
//	@version		0.1.0
//	@description	Admin console backend for networked radio playback devices.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/radiorevive/console/api/swagger"
	"github.com/radiorevive/console/internal/commands"
	"github.com/radiorevive/console/internal/config"
	"github.com/radiorevive/console/internal/directory"
	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/internal/fleet"
	"github.com/radiorevive/console/internal/groups"
	"github.com/radiorevive/console/internal/notify"
	"github.com/radiorevive/console/internal/registry"
	"github.com/radiorevive/console/internal/server"
	"github.com/radiorevive/console/internal/settings"
	"github.com/radiorevive/console/internal/store"
	"github.com/radiorevive/console/internal/version"
	"github.com/radiorevive/console/internal/ws"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "cleanup-devices":
			runCleanupDevices(os.Args[2:])
			return
		case "sync-groups":
			runSyncGroups(os.Args[2:])
			return
		case "assign-group":
			runAssignGroup(os.Args[2:])
			return
		case "list-devices":
			runListDevices(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Radio Revive Console starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database.
	db, err := store.New(viperCfg.GetString("database.dsn"))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Refuse to run an older binary against a newer schema.
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("dsn", viperCfg.GetString("database.dsn")),
	)

	// Shared services.
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register all modules (compile-time composition).
	fleetMod := fleet.New()
	groupsMod := groups.New()
	directoryMod := directory.New()
	modules := []plugin.Plugin{
		fleetMod,
		commands.New(),
		groupsMod,
		directoryMod,
		settings.New(),
		notify.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("modules." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	// Live dashboard stream: one snapshot topic per collection.
	wsHandler := ws.NewHandler(bus, logger.Named("ws"),
		ws.CollectionSource{
			Name:  "devices",
			Topic: fleet.TopicChanged,
			Load: func(ctx context.Context) (any, error) {
				return fleetMod.Store().ListProjected(ctx)
			},
		},
		ws.CollectionSource{
			Name:  "groups",
			Topic: groups.TopicChanged,
			Load: func(ctx context.Context) (any, error) {
				return groupsMod.Store().List(ctx)
			},
		},
		ws.CollectionSource{
			Name:  "users",
			Topic: directory.TopicChanged,
			Load: func(ctx context.Context) (any, error) {
				return directoryMod.Federation().List(ctx)
			},
		},
	)
	logger.Info("websocket handler initialized", zap.String("component", "ws"))

	// Create and start HTTP server.
	srvCfg := server.Config{
		Host: viperCfg.GetString("server.host"),
		Port: viperCfg.GetInt("server.port"),
	}
	devMode := viperCfg.GetBool("server.dev_mode")
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(srvCfg.Addr(), reg, logger.Named("server"), readyCheck, devMode, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("Radio Revive Console ready", zap.String("addr", srvCfg.Addr()))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("Radio Revive Console stopped")
}
