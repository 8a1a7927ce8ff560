package main

import (
	"context"
	"fmt"
	"io"

	"github.com/4vn/gridstore"
	"github.com/4vn/gridstore/internal/config"
	"github.com/4vn/gridstore/internal/logging"
	"github.com/4vn/gridstore/mongodb"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// opener yields a registry for cfg and a function releasing it.
type opener func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gridstore.Registry, func(), error)

type app struct {
	v       *viper.Viper
	cfgFile string
	open    opener

	cfg *config.Config
	log zerolog.Logger
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gridstore.Registry, func(), error) {
	store, err := mongodb.Open(ctx, cfg.MongoURI, cfg.Database,
		mongodb.WithBucket(cfg.Bucket),
		mongodb.WithChunkSize(cfg.ChunkSize),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.MongoURI, err)
	}
	closeFn := func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}

	reg, err := gridstore.New(store.Engine, gridstore.WithLogger(log))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return reg, closeFn, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gridstore",
		Short:         "gridstore stores, reads and removes files in a GridFS bucket",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml)")
	flags.String("uri", "", "MongoDB connection string")
	flags.String("db", "", "database name")
	flags.String("bucket", "", "GridFS bucket name")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Duration("timeout", 0, "per-command timeout")
	for key, flag := range map[string]string{
		"mongo_uri": "uri",
		"database":  "db",
		"bucket":    "bucket",
		"log_level": "log-level",
		"timeout":   "timeout",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newStatCmd(a),
		newRmCmd(a),
		newVersionCmd(),
	)
	return root
}

// withRegistry runs fn with an open registry under the configured timeout.
func (a *app) withRegistry(cmd *cobra.Command, fn func(ctx context.Context, reg *gridstore.Registry) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
	defer cancel()

	reg, closeFn, err := a.open(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, reg)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
