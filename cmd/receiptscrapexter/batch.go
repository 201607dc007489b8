// cmd/receiptscrapexter/batch.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/ReceiptScrapexter/internal/output"
	"github.com/valpere/ReceiptScrapexter/internal/receipt"
	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

var (
	batchOutput      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <links-file>",
	Short: "Extract every QR code link listed in a file",
	Long: `Reads one QR code link per line (blank lines and lines starting with #
are ignored), extracts them concurrently and writes the records to --output.
The format follows the file extension: .json, .csv or .xlsx.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output file (.json, .csv or .xlsx)")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "n", 4, "number of links extracted in parallel")
	_ = batchCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchConcurrency < 1 {
		return fmt.Errorf("validation failed: concurrency must be at least 1")
	}
	if _, err := output.FormatFromPath(batchOutput); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	links, err := readLinks(args[0])
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return fmt.Errorf("validation failed: no links found in %s", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	extractor, _ := receipt.NewFromConfig(cfg, nil)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var auditor *output.Auditor
	if cfg.Audit.Enabled {
		recorder, err := output.NewRecorder(ctx, cfg.Audit)
		if err != nil {
			return fmt.Errorf("failed to open audit sink: %w", err)
		}
		auditor = output.NewAuditor(recorder, nil, cfg.Audit.Timeout)
		defer auditor.Close()
	}

	records := make([]output.Record, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			result := extractor.Extract(gctx, receipt.ExtractionRequest{SourceLink: link})
			auditor.Record(gctx, result)
			records[i] = output.NewRecord(result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	format, err := output.WriteFile(batchOutput, records)
	if err != nil {
		return err
	}

	complete, partial := 0, 0
	for _, record := range records {
		switch record.Outcome {
		case "complete":
			complete++
		case "partial":
			partial++
		}
	}
	cmd.Printf("✓ Extracted %d links (%d complete, %d partial, %d identifier only) in %s format to %s\n",
		len(records), complete, partial, len(records)-complete-partial, format, batchOutput)
	return nil
}

// readLinks returns the non-empty, non-comment lines of path
func readLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open links file: %w", err)
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := utils.CollapseWhitespace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	return links, nil
}
