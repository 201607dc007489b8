// cmd/receiptscrapexter/validate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/ReceiptScrapexter/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Check a configuration file",
	Long: `Parses the configuration file and reports every problem found, with
suggestions on how to fix them.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var templateOutput string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print a starter configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		template := config.GenerateTemplate()
		if templateOutput != "" {
			if err := config.SaveToFile(template, templateOutput); err != nil {
				return err
			}
			cmd.Printf("✓ Configuration template written to %s\n", templateOutput)
			return nil
		}
		return config.SaveToWriter(template, cmd.OutOrStdout())
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "write the template to a file instead of stdout")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(templateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.ParseFile(args[0])
	if err != nil {
		return err
	}

	result := cfg.ValidateWithDetails()
	for _, warning := range result.Warnings {
		cmd.Printf("⚠ %s\n", warning)
	}
	if !result.Valid {
		for _, problem := range result.Errors {
			cmd.Printf("✗ %s: %s\n", problem.Field, problem.Message)
		}
		cmd.Println()
		cmd.Println("💡 Suggestions:")
		for _, suggestion := range config.GetValidationSuggestions(result) {
			cmd.Printf("  • %s\n", suggestion)
		}
		return fmt.Errorf("configuration validation failed with %d error(s)", len(result.Errors))
	}

	cmd.Printf("✓ Configuration file '%s' is valid\n", args[0])
	return nil
}
