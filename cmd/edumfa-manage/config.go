package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edumfa/edumfa-go/internal/config"
	"github.com/edumfa/edumfa-go/internal/manage"
	"github.com/edumfa/edumfa-go/internal/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Import and export policies, resolvers and events",
}

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import configuration from a YAML or JSON file",
	Long: `Import configuration from a YAML or JSON file, or standard input when
no file is given. Existing entries are skipped unless --update is set.`,
	RunE: runWithServices(runConfigImport),
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export configuration as YAML",
	RunE:  runWithServices(runConfigExport),
}

func runConfigImport(ctx context.Context, cmd *cobra.Command, _ []string, services *config.Services) error {
	file, _ := cmd.Flags().GetString("file")
	conftype, _ := cmd.Flags().GetString("type")
	cleanup, _ := cmd.Flags().GetBool("cleanup")
	update, _ := cmd.Flags().GetBool("update")

	document, conftypes, err := services.Manager.ConfImport(file, conftype)
	if err != nil {
		return err
	}

	results, err := services.Manager.Import(ctx, document, conftypes, cleanup, update)
	printImportSummary(cmd, results)
	return err
}

func printImportSummary(cmd *cobra.Command, results []manage.ImportResult) {
	counts := map[manage.Outcome]int{}
	for _, result := range results {
		counts[result.Outcome]++
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Added: %d", counts[manage.OutcomeAdded])))
	fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("Updated: %d", counts[manage.OutcomeUpdated])))
	if counts[manage.OutcomeSkipped] > 0 {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("Skipped: %d", counts[manage.OutcomeSkipped])))
	}
}

func runConfigExport(ctx context.Context, cmd *cobra.Command, _ []string, services *config.Services) error {
	file, _ := cmd.Flags().GetString("file")
	types, _ := cmd.Flags().GetStringSlice("type")
	name, _ := cmd.Flags().GetString("name")
	printPasswords, _ := cmd.Flags().GetBool("print-passwords")

	for i, conftype := range types {
		types[i] = strings.ToLower(strings.TrimSpace(conftype))
	}

	document, err := services.Manager.Export(ctx, types, name, printPasswords)
	if err != nil {
		return err
	}
	return services.Manager.ConfExport(document, file)
}

func init() {
	configImportCmd.Flags().StringP("file", "f", "", "File to import, standard input if empty")
	configImportCmd.Flags().StringP("type", "t", "", fmt.Sprintf("Configuration type (%s), required for list documents", strings.Join(models.DefaultConfTypes, ", ")))
	configImportCmd.Flags().Bool("cleanup", false, "Delete existing policies and events before importing")
	configImportCmd.Flags().BoolP("update", "u", false, "Overwrite existing entries")

	configExportCmd.Flags().StringP("file", "f", "", "File to write, standard output if empty")
	configExportCmd.Flags().StringSliceP("type", "t", nil, "Configuration types to export, all if empty")
	configExportCmd.Flags().StringP("name", "n", "", "Export only entries with this name")
	configExportCmd.Flags().BoolP("print-passwords", "p", false, "Do not censor resolver secrets")

	configCmd.AddCommand(configImportCmd)
	configCmd.AddCommand(configExportCmd)
	rootCmd.AddCommand(configCmd)
}
