package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbolytics/patcher/internal/update"
	"github.com/turbolytics/patcher/pkg/setclause"
)

type renderOutput struct {
	SQL    string `json:"sql"`
	Values []any  `json:"values"`
}

func newRenderCommand() *cobra.Command {
	var rawFields string
	var fieldsFile string
	var translate map[string]string
	var stmt update.Statement
	var key string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Prints the SET clause and bind values for a set of fields",
		Example: `  patcher render --fields '{"firstName": "Aliya", "age": 32}' --translate firstName=first_name
  patcher render --fields-file patch.yml --table users --key-column username --key aliya`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := readFields(rawFields, fieldsFile)
			if err != nil {
				return err
			}

			res, err := setclause.Build(fields, translate)
			if err != nil {
				return err
			}

			out := renderOutput{SQL: res.SetClause, Values: res.Values}
			if stmt.Table != "" {
				stmt.Key = key
				out.SQL, out.Values = stmt.SQL(res)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintln(w, out.SQL)
			for i, v := range out.Values {
				bs, err := json.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "$%d = %s\n", i+1, bs)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rawFields, "fields", "f", "", "Fields to update as a JSON object")
	cmd.Flags().StringVar(&fieldsFile, "fields-file", "", "Path to a YAML or JSON file with the fields to update")
	cmd.Flags().StringToStringVarP(&translate, "translate", "t", nil, "Field to column translations (field=column)")
	cmd.Flags().StringVar(&stmt.Table, "table", "", "Render a full UPDATE for this table")
	cmd.Flags().StringVar(&stmt.KeyColumn, "key-column", "id", "Column identifying the row")
	cmd.Flags().StringVar(&key, "key", "", "Value of the key column")
	cmd.Flags().StringSliceVar(&stmt.Returning, "returning", nil, "Columns to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.MarkFlagsMutuallyExclusive("fields", "fields-file")
	cmd.MarkFlagsOneRequired("fields", "fields-file")

	return cmd
}
