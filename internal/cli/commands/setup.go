// Package commands implements the fsql subcommands.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-mizu/fsql"
	"github.com/go-mizu/fsql/config"
	"github.com/spf13/cobra"
)

type envKey struct{}

type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

// WithConfig stores the resolved configuration and logger for subcommands.
func WithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, envKey{}, env{cfg: cfg, logger: logger})
}

func fromContext(ctx context.Context) (env, error) {
	e, ok := ctx.Value(envKey{}).(env)
	if !ok {
		return env{}, errors.New("configuration not loaded")
	}
	return e, nil
}

// openDB connects through the configured driver. The caller closes the DB.
func openDB(cmd *cobra.Command) (*fsql.DB, error) {
	e, err := fromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	return fsql.Open(cmd.Context(), e.cfg.Driver, e.cfg.DSN, e.cfg.Options(e.logger)...)
}
