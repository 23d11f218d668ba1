package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lachiem1/driverlog/internal/api"
	"github.com/lachiem1/driverlog/internal/auth"
	"github.com/lachiem1/driverlog/internal/config"
	"github.com/lachiem1/driverlog/internal/events"
	"github.com/lachiem1/driverlog/internal/events/kafka"
	"github.com/lachiem1/driverlog/internal/ledger"
	"github.com/lachiem1/driverlog/internal/session"
	"github.com/lachiem1/driverlog/internal/storage"
)

var errNotLoggedIn = errors.New("no driver logged in; run `driverlog login` first")

// app holds the process-wide dependencies for one command invocation.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	pointer   *storage.SessionRepo
	publisher events.Publisher
	kafka     *kafka.Publisher
	logFile   *os.File
}

func loadApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logOut, logFile, err := openLogOutput(flags)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(logOut)

	store, err := openStore(ctx)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		logFile: logFile,
		store:   store,
		pointer: storage.NewSessionRepo(store),
	}
	publishers := events.Multi{events.NewLogPublisher(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, a.kafka)
	}
	a.publisher = publishers
	return a, nil
}

func openStore(ctx context.Context) (*storage.Store, error) {
	dbCfg, err := storage.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve database: %w", err)
	}
	store, err := storage.Open(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

func (a *app) Close() error {
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	errs = append(errs, a.store.Close())
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}

func openLogOutput(flags *rootFlags) (io.Writer, *os.File, error) {
	if flags.logFile != "" {
		f, err := os.OpenFile(flags.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f, nil
	}
	if flags.fullScreen {
		return io.Discard, nil, nil
	}
	return os.Stderr, nil, nil
}

func (a *app) remote() bool {
	return a.cfg.Backend == config.BackendRemote
}

func (a *app) apiClient(token string) *api.Client {
	return api.NewWithBaseURL(token, a.cfg.APIURL)
}

func (a *app) backend() (session.Backend, error) {
	if !a.remote() {
		return storage.NewLedgerBackend(a.store), nil
	}
	token, err := auth.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("load api token: %w", err)
	}
	return api.NewBackend(a.apiClient(token), a.cfg.Location), nil
}

func (a *app) driverID(ctx context.Context) (string, error) {
	p, err := a.pointer.Load(ctx)
	if err != nil {
		return "", err
	}
	if p.DriverID == "" {
		return "", errNotLoggedIn
	}
	return p.DriverID, nil
}

// openSession builds a refreshed session and selects dayFlag, the last
// viewed day, or today, in that order.
func (a *app) openSession(ctx context.Context, dayFlag string) (*session.Session, error) {
	p, err := a.pointer.Load(ctx)
	if err != nil {
		return nil, err
	}
	if p.DriverID == "" {
		return nil, errNotLoggedIn
	}
	backend, err := a.backend()
	if err != nil {
		return nil, err
	}

	sess := session.New(backend, p.DriverID, session.Options{
		Location:  a.cfg.Location,
		Logger:    a.logger,
		Publisher: a.publisher,
		Recorder:  storage.NewSyncStateRepo(a.store),
	})
	if err := sess.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load ledgers: %w", err)
	}

	if dayFlag != "" {
		if _, err := ledger.ParseDayID(dayFlag, a.cfg.Location); err != nil {
			return nil, err
		}
		if err := sess.Select(dayFlag); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if p.DayID != "" {
		if err := sess.Select(p.DayID); err == nil {
			return sess, nil
		}
		a.logger.Info("last viewed day is gone", "day_id", p.DayID)
		if err := a.pointer.SetDay(ctx, ""); err != nil {
			return nil, err
		}
	}
	_ = sess.Select(sess.Today())
	return sess, nil
}

func (a *app) rememberDay(ctx context.Context, sess *session.Session) {
	if err := a.pointer.SetDay(ctx, sess.Selected()); err != nil {
		a.logger.Warn("save selected day failed", "err", err)
	}
}

// withApp runs fn with a loaded app and always closes it.
func withApp(ctx context.Context, flags *rootFlags, fn func(*app) error) (err error) {
	a, err := loadApp(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func withSession(ctx context.Context, flags *rootFlags, fn func(*app, *session.Session) error) error {
	return withApp(ctx, flags, func(a *app) error {
		sess, err := a.openSession(ctx, flags.day)
		if err != nil {
			return err
		}
		return fn(a, sess)
	})
}
