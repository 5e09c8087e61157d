package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/internal/events"
	"github.com/turbolytics/patcher/internal/update"
)

func newUpdateCommand() *cobra.Command {
	var configPath string
	var resource string
	var key string
	var rawFields string
	var fieldsFile string
	var dryRun bool

	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Applies a partial update to a single row of a configured resource",
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
			l := logger.Named("patcher.update")

			fields, err := readFields(rawFields, fieldsFile)
			if err != nil {
				return err
			}

			r, ok := c.Resource(resource)
			if !ok {
				return fmt.Errorf("%w: %s", update.ErrUnknownResource, resource)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if dryRun {
				query, values, err := update.Render(r, key, fields)
				if err != nil {
					return err
				}
				return enc.Encode(renderOutput{SQL: query, Values: values})
			}

			conn, err := pgx.Connect(ctx, c.Database.ConnectionString)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			publisher, err := events.New(c.Events, l)
			if err != nil {
				return err
			}
			defer publisher.Close(ctx)

			u := update.New(conn,
				update.WithLogger(l),
				update.WithPublisher(publisher),
				update.WithResources(r),
			)

			row, err := u.Update(ctx, resource, key, fields)
			if err != nil {
				return err
			}

			l.Debug("row updated", zap.String("resource", resource), zap.String("key", key))
			return enc.Encode(map[string]any{resource: row})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Resource to update")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Key of the row to update")
	cmd.Flags().StringVarP(&rawFields, "fields", "f", "", "Fields to update as a JSON object")
	cmd.Flags().StringVar(&fieldsFile, "fields-file", "", "Path to a YAML or JSON file with the fields to update")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statement instead of executing it")
	cmd.Flags().String("database", "", "Connection string, overrides the config file (env PATCHER_DATABASE)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("resource")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagsMutuallyExclusive("fields", "fields-file")
	v.BindPFlag("database", cmd.Flags().Lookup("database"))

	return cmd
}
