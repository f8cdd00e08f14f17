package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wnagchenghku/nnpshare/nnpcore"
	"github.com/wnagchenghku/nnpshare/nnpcore/db"
	"github.com/wnagchenghku/nnpshare/nnpcore/grantfacility"
	"github.com/wnagchenghku/nnpshare/nnpcore/pages"
)

type serveFlags struct {
	globalFlags
	domainFlags
}

type frontendFlags struct {
	globalFlags
	domainFlags
	modelFlags
}

type configTestFlags struct {
	globalFlags
}

type versionFlags struct {
	globalFlags
}

func newLogger(cfg *nnpcore.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openStore(cfg *nnpcore.Config) (nnpcore.Store, error) {
	switch cfg.Store.Backend {
	case nnpcore.StoreBackendFile:
		return nnpcore.NewFileStore(cfg.Store.Dir)
	default:
		return nnpcore.NewMemStore(), nil
	}
}

func serveBackendCommand(env *command.Env) error {
	flags := env.Config.(*serveFlags)

	cfg, err := nnpcore.LoadConfig(flags.Config)
	if err != nil {
		return err
	}
	if flags.Domain != 0 {
		cfg.DomainID = flags.Domain
	}
	cfg.Role = "backend"

	log := newLogger(cfg)
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	alloc, err := pages.NewMMapAllocator(os.TempDir())
	if err != nil {
		return fmt.Errorf("allocate shared pages: %w", err)
	}
	defer alloc.Close()

	grants := grantfacility.NewMMap(alloc)
	registry := nnpcore.NewSessionRegistry()

	reg := prometheus.NewRegistry()
	metrics := nnpcore.NewMetrics(reg)

	var audit nnpcore.AuditSink = nnpcore.NopAuditSink{}
	var validator nnpcore.AdminKeyValidator
	var auditReader nnpcore.AuditReader
	if cfg.Admin.DatabasePath != "" {
		database, err := db.Open(cfg.Admin.DatabasePath)
		if err != nil {
			return fmt.Errorf("open admin database: %w", err)
		}
		defer database.Close()
		audit = database
		validator = database
		auditReader = database
	}

	backend := nnpcore.NewBackend(cfg.DomainID, store, grants, alloc, nnpcore.NewBackendModelTable(), registry, metrics, audit, log)
	if err := backend.Announce(); err != nil {
		return fmt.Errorf("announce backend: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		if validator == nil {
			log.Warn().Msg("no admin database configured: /sessions and /metrics are unauthenticated")
		}
		handler := nnpcore.NewDiagnosticsHandler(registry, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), validator, auditReader)
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: handler}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("diagnostics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("diagnostics endpoint stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	log.Info().Int("domain", cfg.DomainID).Msg("nnpshare backend running")
	return backend.Run(ctx)
}

func runFrontendCommand(env *command.Env) error {
	flags := env.Config.(*frontendFlags)

	if err := requireString(flags.Model, "model"); err != nil {
		return err
	}

	cfg, err := nnpcore.LoadConfig(flags.Config)
	if err != nil {
		return err
	}
	if flags.Domain != 0 {
		cfg.DomainID = flags.Domain
	}
	cfg.Role = "frontend"
	cfg.Model = flags.Model
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg)
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	alloc, err := pages.NewMMapAllocator(os.TempDir())
	if err != nil {
		return fmt.Errorf("allocate shared pages: %w", err)
	}
	defer alloc.Close()
	grants := grantfacility.NewMMap(alloc)

	frontend := nnpcore.NewFrontend(cfg.DomainID, store, grants, nnpcore.NewFrontendModelTable(), nil, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := frontend.Init(ctx, cfg.Model); err != nil {
		return fmt.Errorf("frontend init: %w", err)
	}
	defer frontend.Shutdown()

	count := 0
	for {
		_, _, ok := frontend.NextParam()
		if !ok {
			break
		}
		count++
	}
	log.Info().Int("tensors", count).Msg("resolved every tensor")

	return nil
}

func configTestCommand(env *command.Env) error {
	flags := env.Config.(*configTestFlags)
	if _, err := nnpcore.LoadConfig(flags.Config); err != nil {
		return fmt.Errorf("configuration test failed: %w", err)
	}
	fmt.Println("configuration is valid")
	return nil
}

func versionCommand(env *command.Env) error {
	fmt.Println("nnpshare dev")
	return nil
}

func serveCommands() []*command.C {
	return []*command.C{
		{
			Name:     "serve",
			Usage:    "",
			Help:     "Run a backend, publishing models to requesting frontends",
			SetFlags: Flags(flax.MustBind, &serveFlags{}),
			Run:      serveBackendCommand,
		},
		{
			Name:     "request",
			Usage:    "--model <name>",
			Help:     "Run a frontend, requesting one model and resolving its tensors",
			SetFlags: Flags(flax.MustBind, &frontendFlags{}),
			Run:      runFrontendCommand,
		},
		{
			Name:     "version",
			Usage:    "",
			Help:     "Show version information",
			SetFlags: Flags(flax.MustBind, &versionFlags{}),
			Run:      versionCommand,
		},
	}
}

func configCommands() []*command.C {
	return []*command.C{
		{
			Name:  "config",
			Usage: "test",
			Help:  "Configuration management",
			Commands: []*command.C{
				{
					Name:     "test",
					Usage:    "",
					Help:     "Validate the configuration file",
					SetFlags: Flags(flax.MustBind, &configTestFlags{}),
					Run:      configTestCommand,
				},
			},
		},
	}
}
