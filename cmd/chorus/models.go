package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newModelsCmd(load configLoader) *cobra.Command {
	var free, asJSON bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Print the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			catalog, err := buildCatalog(cfg)
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			models := catalog.List()
			if free {
				models = catalog.ListFree()
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}

			table := uitable.New()
			table.Separator = "  "
			table.AddRow("ID", "PROVIDER", "FREE", "CAPABILITIES", "LABEL")
			for _, m := range models {
				caps := make([]string, len(m.Capabilities))
				for i, c := range m.Capabilities {
					caps[i] = string(c)
				}
				table.AddRow(m.ID, m.Provider, m.IsFree, strings.Join(caps, ","), m.Label)
			}
			_, err = fmt.Fprintln(out, table)
			return err
		},
	}
	cmd.Flags().BoolVar(&free, "free", false, "only list free-tier models")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
