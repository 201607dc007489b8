// cmd/receiptscrapexter/extract.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/pkg/api"
)

var (
	extractValue      string
	extractDate       string
	extractStrictHost bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <link>",
	Short: "Extract value and date from one QR code link",
	Long: `Runs the extraction pipeline on a single QR code link and prints the
same JSON document the HTTP endpoint returns. With --strict-host the link must
point to one of the configured tax-authority portals.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractValue, "value", "", "value already parsed from the QR code (hint)")
	extractCmd.Flags().StringVar(&extractDate, "date", "", "emission date already parsed from the QR code (hint)")
	extractCmd.Flags().BoolVar(&extractStrictHost, "strict-host", false, "reject links outside portal.allowed_hosts")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	link := strings.TrimSpace(args[0])
	if link == "" {
		return fmt.Errorf("validation failed: link cannot be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	extractor, service := receipt.NewFromConfig(cfg, nil)
	req := receipt.ExtractionRequest{
		SourceLink:  link,
		HintedValue: extractValue,
		HintedDate:  extractDate,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result receipt.Result
	if extractStrictHost {
		result, err = service.Lookup(ctx, req)
		if err != nil {
			return err
		}
	} else {
		result = extractor.Extract(ctx, req)
	}

	if verbose {
		printTrace(cmd, result)
	}

	data, err := json.MarshalIndent(api.ExtractResponse{
		NumeroDocumento: result.DocumentIdentifier,
		Valor:           result.MonetaryValue,
		DataEmissao:     result.EmissionDate,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// printTrace writes the stages and winning tiers to stderr
func printTrace(cmd *cobra.Command, result receipt.Result) {
	w := cmd.ErrOrStderr()
	stages := make([]string, len(result.Stages))
	for i, stage := range result.Stages {
		stages[i] = string(stage)
	}
	fmt.Fprintf(w, "stages: %s\n", strings.Join(stages, " -> "))
	fmt.Fprintf(w, "fetch:  %s\n", result.Fetch)
	if result.FetchError != nil {
		fmt.Fprintf(w, "        %v\n", result.FetchError)
	}
	for _, field := range []receipt.Field{receipt.FieldValue, receipt.FieldDate} {
		if tier, ok := result.Sources[field]; ok {
			fmt.Fprintf(w, "%-7s %s\n", string(field)+":", tier)
		}
	}
}
