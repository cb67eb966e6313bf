package app

import (
	"context"
	"fmt"
	"time"

	"github.com/psantos/loro/internal/auth"
	"github.com/psantos/loro/internal/bus"
	"github.com/psantos/loro/internal/config"
	"github.com/psantos/loro/internal/connectivity"
	"github.com/psantos/loro/internal/directory"
	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/docstore/firestore"
	"github.com/psantos/loro/internal/lock"
	"github.com/psantos/loro/internal/logging"
	"github.com/psantos/loro/internal/media"
	"github.com/psantos/loro/internal/presence"
	"github.com/psantos/loro/internal/profile"
	"github.com/psantos/loro/internal/stories"
	"github.com/psantos/loro/internal/thread"
	"github.com/psantos/loro/internal/users"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// defaultProbeAddr is dialed when the config does not name a probe target.
const defaultProbeAddr = "firestore.googleapis.com:443"

const probeInterval = 15 * time.Second

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the sync daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideAuth,
			provideUploader,
			provideUsers,
			provideDirectory,
			provideThread,
			providePresence,
			provideStories,
			provideWatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", profile.ConfigPath(), err)
	}
	if cfg.Backend.ProjectID == "" {
		return nil, fmt.Errorf("config: backend.project_id is required")
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogDir(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, logger *zap.Logger) (docstore.Store, error) {
	s, err := firestore.NewStore(context.Background(), cfg.Backend.ProjectID, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("document store connected", zap.String("project", cfg.Backend.ProjectID))
	return s, nil
}

func provideAuth(cfg *config.Config) auth.Provider {
	return auth.Static{UserID: cfg.Backend.UserID}
}

func provideUploader(cfg *config.Config, logger *zap.Logger) (media.Uploader, error) {
	return media.NewCloudinary(cfg.Media, logger)
}

func provideUsers(s docstore.Store, provider auth.Provider, logger *zap.Logger) *users.Repository {
	return users.New(s, provider, logger)
}

func provideDirectory(s docstore.Store, logger *zap.Logger) *directory.Directory {
	return directory.New(s, logger)
}

func provideThread(s docstore.Store, logger *zap.Logger) *thread.Thread {
	return thread.New(s, logger)
}

func providePresence(s docstore.Store, logger *zap.Logger) *presence.Protocol {
	return presence.New(s, logger)
}

func provideStories(s docstore.Store, logger *zap.Logger) *stories.Stories {
	return stories.New(s, logger)
}

func provideWatcher(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *connectivity.Watcher {
	addr := cfg.Probe.Addr
	if addr == "" {
		addr = defaultProbeAddr
	}
	return connectivity.NewWatcher(addr, probeInterval, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, s docstore.Store, watcher *connectivity.Watcher, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			watcher.Start(context.Background())
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			watcher.Stop()
			if closer, ok := s.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Warn("error closing store", zap.Error(err))
				}
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
