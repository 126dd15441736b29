// Package app wires the console daemon together: config, logging,
// schedule persistence, the recurrence engine, task actions and the
// admin HTTP API. Construction is explicit; there are no package-level
// singletons.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"matrixconsole/internal/backup"
	"matrixconsole/internal/compose"
	"matrixconsole/internal/config"
	"matrixconsole/internal/repo"
	"matrixconsole/internal/schedule"
	"matrixconsole/internal/store"
	"matrixconsole/internal/web"
	logx "matrixconsole/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store     store.Store
	runner    *schedule.Runner
	schedules *schedule.Service
	web       *web.Server
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logCfg(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	st, err := store.Open(storeCfg(cfg.Store), log.With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open schedule store: %w", err)
	}

	cmdTimeout := cfg.Deployment.CommandTimeout.Std(5 * time.Minute)
	comp := compose.NewRunner(cfg.Deployment.ProjectDir, cmdTimeout, log.With(logx.String("comp", "compose")))
	checkout := repo.NewRunner(cfg.Deployment.ProjectDir, cmdTimeout, log.With(logx.String("comp", "repo")))

	bak, err := backup.New(ctx, backup.Config{
		DataDir:         cfg.Backup.DataDir,
		TmpDir:          cfg.Backup.TmpDir,
		S3Bucket:        cfg.Backup.S3Bucket,
		S3Region:        cfg.Backup.S3Region,
		AccessKeyID:     cfg.Backup.S3AccessKeyID,
		SecretAccessKey: cfg.Backup.S3SecretAccessKey,
	}, log.With(logx.String("comp", "backup")))
	if err != nil {
		st.Close()
		logSvc.Close()
		return nil, fmt.Errorf("init backup service: %w", err)
	}

	reg := schedule.NewRegistry()
	registerActions(reg, comp, bak, log.With(logx.String("comp", "tasks")))

	runner := schedule.NewRunner(cfg.Scheduler.Timezone, log.With(logx.String("comp", "scheduler")))
	schedules := schedule.NewService(st, reg, runner, log.With(logx.String("comp", "schedules")))

	srv := web.New(cfg.HTTP, cfg.Deployment, schedules, comp, bak, checkout, log.With(logx.String("comp", "web")))

	return &App{
		cfgm:      cfgm,
		logSvc:    logSvc,
		log:       log,
		store:     st,
		runner:    runner,
		schedules: schedules,
		web:       srv,
	}, nil
}

// registerActions binds each task type to its deployment operation.
// Action errors are logged at the engine boundary; nothing here may
// take the scheduler down.
func registerActions(reg *schedule.Registry, comp *compose.Runner, bak *backup.Service, log logx.Logger) {
	reg.Register(schedule.TaskUpdate, func(ctx context.Context) error {
		if res, err := comp.Pull(ctx, ""); err != nil {
			return err
		} else if !res.Success() {
			return fmt.Errorf("image pull failed: %s", res.Stderr)
		}
		res, err := comp.UpDetached(ctx)
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("compose up failed: %s", res.Stderr)
		}
		log.Info("scheduled update completed")
		return nil
	})

	reg.Register(schedule.TaskRestart, func(ctx context.Context) error {
		res, err := comp.Action(ctx, "restart", "")
		if err != nil {
			return err
		}
		if !res.Success() {
			return fmt.Errorf("restart failed: %s", res.Stderr)
		}
		log.Info("scheduled restart completed")
		return nil
	})

	reg.Register(schedule.TaskBackup, func(ctx context.Context) error {
		name, err := bak.Run(ctx)
		if err != nil {
			return err
		}
		log.Info("scheduled backup completed", logx.String("archive", name))
		return nil
	})
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.runner.Start(ctx)
	a.schedules.Restore(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.web.Run(ctx) })
	g.Go(func() error { return a.cfgm.Watch(ctx) })
	g.Go(func() error {
		a.reloadLoop(ctx)
		return nil
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("console ready")

	err := g.Wait()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.runner.Stop(stopCtx)

	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn("close schedule store", logx.Err(cerr))
	}
	a.logSvc.Close()

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// reloadLoop applies hot-reloadable settings. Only the logging section
// takes effect without a restart; the rest is logged and ignored.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts, keep only the newest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			if cfg.Logging != last.Logging {
				a.logSvc.Apply(logCfg(cfg.Logging))
				a.log.Info("logging reconfigured", logx.String("level", cfg.Logging.Level))
			} else {
				a.log.Debug("config reload received, no hot-applicable changes")
			}
			last = cfg
		}
	}
}

func logCfg(l config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: l.FilePath != "",
			Path:    l.FilePath,
		},
	}
}

func storeCfg(s config.StoreConfig) store.Config {
	return store.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		BusyTimeout: s.BusyTimeout.Std(0),
	}
}
