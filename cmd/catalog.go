package cmd

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/boamp-console/internal/department"
	"github.com/JakeFAU/boamp-console/internal/keyword"
)

func newDepartmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List the department catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := pterm.TableData{{"Code", "Nom"}}
			for _, d := range department.All() {
				data = append(data, []string{d.Code, d.Name})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}

func newKeywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "List the keyword options",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			kws := cfg.Keywords
			if len(kws) == 0 {
				kws = keyword.Predefined()
			}
			data := pterm.TableData{{"Mot-clé", "Type"}}
			for _, kw := range kws {
				kind := "texte"
				if keyword.IsCPV(kw) {
					kind = "CPV"
				}
				data = append(data, []string{kw, kind})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}

func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(out, table)
	return nil
}
