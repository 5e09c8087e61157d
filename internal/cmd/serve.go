package cmd

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/internal/events"
	"github.com/turbolytics/patcher/internal/server"
	"github.com/turbolytics/patcher/internal/update"
)

func newServeCommand() *cobra.Command {
	var configPath string

	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves partial updates over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := config.NewPatcherFromFile(configPath)
			if err != nil {
				return err
			}
			c.Override(v)

			logger, err := newLogger(c.Global.Logger.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()
			l := logger.Named("patcher.server")

			pool, err := pgxpool.New(ctx, c.Database.ConnectionString)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return err
			}

			publisher, err := events.New(c.Events, logger.Named("patcher.events"))
			if err != nil {
				return err
			}
			defer publisher.Close(ctx)

			u := update.New(pool,
				update.WithLogger(logger.Named("patcher.update")),
				update.WithPublisher(publisher),
				update.WithResources(c.Resources...),
			)

			addr := c.Server.Addr
			if addr == "" {
				addr = ":8080"
			}

			l.Info("serving resources",
				zap.Int("resources", len(c.Resources)),
				zap.String("events", c.Events.Type))

			var opts []server.Option
			if stats, ok := publisher.(events.StatsReporter); ok {
				opts = append(opts, server.WithStats(stats))
			}

			return server.New(u, l, opts...).Start(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().String("addr", "", "Address to listen on, overrides the config file (env PATCHER_ADDR)")
	cmd.Flags().String("database", "", "Connection string, overrides the config file (env PATCHER_DATABASE)")
	cmd.MarkFlagRequired("config")
	v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	v.BindPFlag("database", cmd.Flags().Lookup("database"))

	return cmd
}
