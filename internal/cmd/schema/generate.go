package schema

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/turbolytics/patcher/internal/config"
	"github.com/turbolytics/patcher/internal/schema"
)

func newGenerateCommand() *cobra.Command {
	v := config.NewViper()

	var cmd = &cobra.Command{
		Use:   "generate",
		Short: "Generates a resource definition from a CREATE TABLE statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _ := zap.NewDevelopment()
			defer logger.Sync()
			l := logger.Named("patcher.schema.generate")

			r, err := resource(cmd.Context(), v, l)
			if err != nil {
				return err
			}
			if name := v.GetString("name"); name != "" {
				r.Name = name
			}

			bs, err := yaml.Marshal(struct {
				Resources []config.Resource `yaml:"resources"`
			}{
				Resources: []config.Resource{r},
			})
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}

	cmd.Flags().StringP("query", "q", "", "The CREATE TABLE statement to generate the resource from")
	cmd.Flags().String("file", "", "File containing the CREATE TABLE statement")
	cmd.Flags().String("database", "", "Connection string of a database to introspect (env PATCHER_DATABASE)")
	cmd.Flags().String("schema", "public", "Schema of the introspected table")
	cmd.Flags().String("table", "", "Table to introspect")
	cmd.Flags().String("name", "", "Resource name, defaults to the table name")
	bindFlags(v, cmd, "query", "file", "database", "schema", "table", "name")
	return cmd
}

// resource derives the resource from DDL when given, otherwise by
// introspecting a live table.
func resource(ctx context.Context, v *viper.Viper, l *zap.Logger) (config.Resource, error) {
	query := v.GetString("query")
	if path := v.GetString("file"); path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return config.Resource{}, err
		}
		query = string(bs)
	}

	if query != "" {
		l.Debug("generating resource from ddl", zap.String("query", query))
		return schema.ResourceFromDDL(query)
	}

	table := v.GetString("table")
	if table == "" || v.GetString("database") == "" {
		return config.Resource{}, fmt.Errorf("either --query, --file or --database with --table is required")
	}

	conn, err := pgx.Connect(ctx, v.GetString("database"))
	if err != nil {
		return config.Resource{}, err
	}
	defer conn.Close(ctx)

	l.Debug("introspecting table",
		zap.String("schema", v.GetString("schema")),
		zap.String("table", table))

	return schema.Introspect(ctx, conn, v.GetString("schema"), table)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) {
	for _, name := range names {
		v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}
