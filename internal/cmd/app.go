package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/config"
	"github.com/globalassist/globalassist/sdk/go/credentials"
	"github.com/globalassist/globalassist/sdk/go/guard"
	"github.com/globalassist/globalassist/sdk/go/session"
)

// App is the composition root shared by all commands of one invocation.
type App struct {
	Config  config.Config
	Logger  zerolog.Logger
	Client  *sdk.Client
	Creds   credentials.Store
	Session *session.Store
	Guard   *guard.Guard
	Printer *Printer

	in      io.Reader
	closers []func() error
}

// Streams are the process streams used by commands.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewApp wires configuration into clients and stores. creds, when non-nil,
// replaces the configured credential backend.
func NewApp(cfg config.Config, streams Streams, creds credentials.Store) (*App, error) {
	logger, err := newLogger(cfg.Log, streams.Err)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Printer: NewPrinter(streams.Out, cfg.Output),
		in:      streams.In,
	}

	if creds == nil {
		creds, err = app.openCredentials()
		if err != nil {
			return nil, err
		}
	}
	app.Creds = creds

	provider, err := sdk.NewCredentialTokenProvider(creds)
	if err != nil {
		return nil, err
	}
	opts := []sdk.Option{
		sdk.WithBaseURL(cfg.BaseURL),
		sdk.WithTokenProvider(provider),
		sdk.WithRequestTimeout(cfg.RequestTimeout),
		sdk.WithTelemetry(sdk.ZerologHooks(logger)),
		sdk.WithClientHeader("globalassist-cli/" + sdk.Version),
	}
	if cfg.RetryAttempts > 1 {
		retry := sdk.DefaultRetryConfig()
		retry.MaxAttempts = cfg.RetryAttempts
		opts = append(opts, sdk.WithRetry(retry))
	}
	app.Client, err = sdk.New(opts...)
	if err != nil {
		return nil, err
	}

	app.Session, err = session.NewStore(app.Client.Auth, creds,
		session.WithLogger(logger.With().Str("component", "session").Logger()),
		session.WithTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}
	app.Guard = guard.New(app.Session,
		guard.WithLogger(logger.With().Str("component", "guard").Logger()),
		guard.WithSuspendHandler(func(guard.Request) {
			logger.Debug().Msg("waiting for session to load")
		}),
	)
	return app, nil
}

func (a *App) openCredentials() (credentials.Store, error) {
	origin := credentials.Origin(a.Config.BaseURL)
	switch a.Config.Credentials.Backend {
	case config.CredentialsMemory:
		return credentials.NewMemoryStore(), nil
	case config.CredentialsRedis:
		opts, err := redis.ParseURL(a.Config.Credentials.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		var storeOpts []credentials.RedisOption
		if ttl := a.Config.Credentials.RedisTTL; ttl > 0 {
			storeOpts = append(storeOpts, credentials.WithTTL(ttl))
		}
		return credentials.NewRedisStore(rdb, origin, storeOpts...)
	default:
		path := a.Config.Credentials.File
		if path == "" {
			p, err := credentials.DefaultPath(origin)
			if err != nil {
				return nil, err
			}
			path = p
		}
		return credentials.NewFileStore(path)
	}
}

// Close waits for background session work and releases connections.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Session != nil {
		a.Session.Close()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Require navigates to req and turns anything but Allowed into a RedirectError.
func (a *App) Require(ctx context.Context, req guard.Request) error {
	d, err := a.Guard.Navigate(ctx, req)
	if err != nil {
		return err
	}
	return decisionError(d)
}

func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := cfg.ZerologLevel()
	if err != nil {
		return zerolog.Nop(), err
	}
	var out io.Writer = w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
