package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/observability/ops"
	"hwbot/internal/poller"
	"hwbot/internal/practicum"
	"hwbot/internal/sdnotify"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

// ErrMissingCredentials is returned by New when none of the required
// environment variables is set.
var ErrMissingCredentials = errors.New("Отсутствуют обязательные переменные окружения!")

type Options struct {
	// ConfigPath is the optional JSON/YAML tuning file.
	ConfigPath string
	// EnvFile is the dotenv file; empty means ".env".
	EnvFile string
	// Getenv overrides os.Getenv (tests).
	Getenv func(string) string
	// Sender overrides the Telegram transport (tests).
	Sender kit.Sender
	// API overrides the Practicum client (tests).
	API poller.APIClient
	// BootLogger receives records written before the config is loaded.
	// Zero means a DEBUG console logger.
	BootLogger logx.Logger
}

type App struct {
	cfgm *config.ConfigManager
	log  logx.Logger
	logs *logx.Service

	creds   config.Credentials
	chatID  int64
	api     poller.APIClient
	closers []func()

	notif   *notifier.Service
	poller  *poller.Poller
	journal storage.Journal
	sd      *sdnotify.Notifier
	ops     *ops.Server
}

// New loads the environment and the tuning file and wires every component.
// It performs no network I/O.
func New(ctx context.Context, opts Options) (*App, error) {
	boot := opts.BootLogger
	if boot.IsZero() {
		boot = logx.NewConsole("DEBUG")
	}
	boot = boot.With(logx.String("comp", "boot"))

	loaded, err := config.LoadDotEnv(opts.EnvFile)
	if err != nil {
		boot.Warn("dotenv not loaded", logx.Err(err))
	} else if !loaded {
		boot.Debug("no dotenv file; using process environment")
	}

	creds := config.CredentialsFromEnv(opts.Getenv)
	if !creds.CheckTokens() {
		boot.Critical(ErrMissingCredentials.Error(), logx.Any("missing", creds.Missing()))
		return nil, ErrMissingCredentials
	}
	boot.Debug("Можно продолжить работу")
	if missing := creds.Missing(); len(missing) > 0 {
		boot.Warn("some environment variables are empty; the bot will start anyway", logx.Any("missing", missing))
	}

	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfgm.SetValidator(ValidateConfig)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), nil)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	target := kit.ChatTarget{ThreadID: cfg.Telegram.ThreadID}
	if id, err := creds.ChatID(); err != nil {
		log.Warn("chat id unusable; messages will not be delivered", logx.Err(err))
	} else {
		target.ChatID = id
	}
	logSvc.SetTelegramTarget(target)

	a := &App{cfgm: cfgm, log: log.With(logx.String("comp", "app")), logs: logSvc, creds: creds, chatID: target.ChatID}

	sender := opts.Sender
	if sender == nil {
		sender, err = a.newSender(cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	logSvc.SetSender(sender)

	a.api = opts.API
	if a.api == nil {
		pcfg, err := mapPracticumConfig(cfg, creds.PracticumToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		client, err := practicum.New(pcfg, log.With(logx.String("comp", "practicum")))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.api = client
		a.closers = append(a.closers, client.Close)
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		a.Close()
		return nil, err
	} else if enabled {
		j, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.journal = j
		a.log.Info("cycle journal enabled", logx.String("driver", sc.Driver))
	}

	if cfg.SystemdNotify() {
		a.sd = sdnotify.New(log.With(logx.String("comp", "systemd")))
	}

	sch, err := mapRetrySchedule(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.notif = notifier.New(mapNotifierConfig(cfg, target), sender, log.With(logx.String("comp", "notifier")))
	popts := []poller.Option{}
	if a.journal != nil {
		popts = append(popts, poller.WithJournal(a.journal))
	}
	if a.sd != nil {
		popts = append(popts, poller.WithHeartbeat(a.sd))
	}
	plog := log.With(logx.String("comp", "poller"))
	a.poller = poller.New(poller.Config{
		Schedule:        sch,
		NotifyOnFailure: cfg.NotifyOnFailure(),
	}, a.api, homework.NewParser(plog), a.notif, plog, popts...)

	if cfg.Ops.Enabled {
		a.ops = ops.New(mapOpsConfig(cfg), a.poller, a.journal, log.With(logx.String("comp", "ops")))
	}

	return a, nil
}

func (a *App) newSender(cfg *config.Config, log logx.Logger) (kit.Sender, error) {
	if strings.TrimSpace(a.creds.TelegramToken) == "" {
		return missingSender{}, nil
	}
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	// Offline: the bot only sends, so the getMe handshake is skipped.
	ad, err := telegram.New(telegram.Config{
		Token:   a.creds.TelegramToken,
		Timeout: timeout,
		Offline: true,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// missingSender stands in when TELEGRAM_TOKEN is empty, so a half-configured
// bot still runs its loop and logs every failed delivery.
type missingSender struct{}

func (missingSender) SendText(context.Context, kit.ChatTarget, string, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, fmt.Errorf("%s is not set", config.EnvTelegramToken)
}

func (a *App) Poller() *poller.Poller { return a.poller }

func (a *App) Notifier() *notifier.Service { return a.notif }

// Run polls until ctx is done. The config watcher and the ops server run
// alongside; their failures are logged and never stop the loop.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.poller.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.cfgm.Path() != "" {
		updates := a.cfgm.Subscribe(1)
		g.Go(func() error {
			if err := a.cfgm.Watch(gctx); err != nil {
				a.log.Warn("config watcher stopped; hot reload disabled", logx.Err(err))
			}
			return nil
		})
		g.Go(func() error {
			defer a.cfgm.Unsubscribe(updates)
			for {
				select {
				case <-gctx.Done():
					return nil
				case cfg := <-updates:
					a.applyConfig(cfg)
				}
			}
		})
	}

	if a.ops != nil {
		g.Go(func() error {
			if err := a.ops.Run(gctx); err != nil {
				a.log.Error("ops server failed", logx.Err(err))
			}
			return nil
		})
	}

	// The loop heartbeats once per iteration; WatchdogSec may be shorter than
	// the retry period, so keep pinging in between.
	if wd := a.sd.Watchdog(); wd > 0 {
		g.Go(func() error {
			t := time.NewTicker(wd / 2)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					a.sd.Heartbeat(fmt.Sprintf("cursor=%d", a.poller.Cursor()))
				}
			}
		})
	}

	a.sd.Ready()
	err := g.Wait()
	a.sd.Stopping()
	return err
}

// Once runs a single cycle, reporting a failure the same way the loop does.
func (a *App) Once(ctx context.Context) error {
	return a.poller.RunOnce(ctx)
}

// applyConfig hot-applies the sections that can change at runtime.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	sch, err := mapRetrySchedule(cfg)
	if err != nil {
		// ValidateConfig already rejected this; keep the running schedule.
		a.log.Warn("retry period not applied", logx.Err(err))
	} else {
		a.poller.Apply(sch, cfg.NotifyOnFailure())
	}
	target := kit.ChatTarget{ChatID: a.chatID, ThreadID: cfg.Telegram.ThreadID}
	a.notif.Apply(mapNotifierConfig(cfg, target))
	a.logs.SetTelegramTarget(target)

	a.log.Info("config applied",
		logx.String("poller.retry_period", cfg.Poller.RetryPeriod),
		logx.Bool("poller.notify_on_failure", cfg.NotifyOnFailure()),
		logx.String("logging.level", cfg.Logging.Level),
		logx.Int("telegram.thread_id", cfg.Telegram.ThreadID),
	)
}

func (a *App) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("journal close failed", logx.Err(err))
		}
	}
	for _, c := range a.closers {
		c()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
