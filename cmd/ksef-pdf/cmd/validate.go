package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/processor"
	"github.com/rezonia/ksef-pdf/internal/report"
)

var (
	validateFormat  string
	validateOutput  string
	validateTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate FA invoice files",
	Long: `Validate one or more FA(2)/FA(3) invoice files.

Checks performed:
  - Schema namespace and form code
  - Seller and buyer NIP check digits
  - Invoice number, dates and currency
  - Line, subtotal and gross amounts (tolerance 0.01)
  - Payment method and due dates
  - KSeF number checksum for invoices issued online

Examples:
  ksef-pdf validate invoice.xml
  ksef-pdf validate invoices/ -f csv -o report.csv
  ksef-pdf validate *.xml -f xlsx -o report.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "table", "Output format (json, table, csv, xlsx)")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "", "Output file (default: stdout)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 30*time.Second, "Validation timeout per file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(validateFormat)
	if err != nil {
		return err
	}

	files, err := collectFiles(args, ".xml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	pipeline := processor.NewPipeline(processor.WithLogger(log))
	rep := &report.Report{}
	for _, file := range files {
		rep.Add(validateFile(commandContext(cmd), pipeline, file))
	}

	w, closeOutput, err := openOutput(validateOutput)
	if err != nil {
		return err
	}
	if err := rep.Write(w, format); err != nil {
		_ = closeOutput()
		return err
	}
	if err := closeOutput(); err != nil {
		return err
	}

	if !rep.Valid() {
		_, invalid := rep.Counts()
		return fmt.Errorf("validation failed for %d of %d files", invalid, len(files))
	}
	return nil
}

func validateFile(parent context.Context, pipeline *processor.Pipeline, file string) report.Entry {
	ctx, cancel := context.WithTimeout(parent, validateTimeout)
	defer cancel()

	data, err := os.ReadFile(file)
	if err != nil {
		return report.Entry{File: file, Errors: []string{fmt.Sprintf("failed to read file: %v", err)}}
	}

	result := pipeline.Process(ctx, data, processor.Options{
		Render:     cfg.RenderOptions(),
		SkipRender: true,
	})
	log.Debug().Str("file", file).Bool("valid", result.Error == nil).Msg("file validated")
	return report.NewEntry(file, result)
}
