// cmd/receiptscrapexter/root.go
package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/ReceiptScrapexter/internal/config"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "receiptscrapexter",
	Short: "Extract value and date from fiscal receipt QR links",
	Long: `Reads the QR code link printed on a Brazilian consumer receipt (NFC-e)
and recovers the document identifier, the total value and the emission date,
from the link itself or from the tax-authority portal page it points to.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		utils.SetOutput(cmd.ErrOrStderr(), false)
		if verbose {
			utils.SetLevel(utils.DebugLevel)
		} else {
			utils.SetLevel(utils.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs and technical error details")

	// snake_case spellings like --strict_host match the config.yaml key style
	rootCmd.SetGlobalNormalizationFunc(dashedFlagNames)
}

// dashedFlagNames lets every flag be spelled with underscores
func dashedFlagNames(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// loadConfig resolves the configuration shared by every command
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}
