package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/rca/pkg/rca"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the failure pattern catalog",
	Long: `List the rules used to classify log lines, in evaluation order.

The built-in catalog is used unless catalog.path points at a YAML rule file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		r, err := rca.New(rca.WithConfig(cfg), rca.WithoutHostSignals())
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), r.CatalogVersion(), r.Rules(), jsonOutput)
	},
}

func init() {
	catalogCmd.Flags().BoolP("json", "j", false, "Output the catalog as JSON")
}

func printCatalog(w io.Writer, version string, rules []rca.Rule, jsonOutput bool) error {
	if jsonOutput {
		out, err := json.MarshalIndent(struct {
			Version string     `json:"version"`
			Rules   []rca.Rule `json:"rules"`
		}{version, rules}, "", "  ")
		if err != nil {
			return fmt.Errorf("format catalog: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	}

	fmt.Fprintf(w, "Catalog %s, %d rules\n", version, len(rules))
	data := pterm.TableData{{"Name", "Category", "Severity", "Confidence", "Applies to"}}
	for _, rl := range rules {
		applies := "all"
		if len(rl.AppliesTo) > 0 {
			applies = strings.Join(rl.AppliesTo, ",")
		}
		data = append(data, []string{
			rl.Name, rl.Category, rl.Severity, fmt.Sprintf("%.2f", rl.Confidence), applies,
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}
