package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/criteria/cli/output"
	"github.com/fluxbase-eu/criteria/internal/api"
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Aliases: []string{"table"},
	Short:   "List configured tables",
	Long: `List the tables criteria can be resolved against, with the schema they
live in and where their allow-list comes from.`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tables := api.NewTablePermits(cfg, nil).Tables()
	if len(tables) == 0 {
		formatter.PrintInfo("No tables configured")
		return nil
	}

	data := output.TableData{Headers: []string{"NAME", "SCHEMA", "SOURCE", "FIELDS"}}
	for _, t := range tables {
		fields := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields = append(fields, f.Name+":"+f.Type)
		}
		data.Rows = append(data.Rows, []string{t.Name, t.Schema, t.Source, strings.Join(fields, ",")})
	}

	return formatter.PrintTable(data)
}
