package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/ksef-pdf/internal/parser/fa"
	"github.com/rezonia/ksef-pdf/internal/pdfinfo"
	"github.com/rezonia/ksef-pdf/internal/processor"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about invoice and PDF files",
	Long: `Display information about files without full processing.

Shows:
  - Detected file format (XML, PDF, Image)
  - For FA XML: namespace, form code and schema
  - For PDF: structural validity, page count, metadata and document id

Examples:
  ksef-pdf info invoice.xml
  ksef-pdf info out/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".xml", ".pdf")
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	for _, file := range files {
		printFileInfo(file)
		fmt.Println()
	}

	return nil
}

func printFileInfo(filePath string) {
	fmt.Printf("File: %s\n", filePath)

	info, err := os.Stat(filePath)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}

	fmt.Printf("  Size: %d bytes\n", info.Size())
	fmt.Printf("  Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("  Error reading file: %v\n", err)
		return
	}

	format := processor.DetectFormat(data)
	fmt.Printf("  Format: %s\n", format)

	switch format {
	case processor.FormatXML:
		doc, err := fa.Inspect(data)
		if err != nil {
			fmt.Printf("  Not an FA document: %v\n", err)
			return
		}
		fmt.Printf("  Schema: %s\n", doc.Schema)
		fmt.Printf("  Namespace: %s\n", doc.Namespace)
		fmt.Printf("  Form code: %s (%s, variant %d, schema %s)\n",
			doc.FormCode.Value, doc.FormCode.SystemCode, doc.FormCode.Variant, doc.FormCode.SchemaVersion)

	case processor.FormatPDF:
		pi, err := pdfinfo.InspectBytes(data)
		if err != nil {
			fmt.Printf("  Error: %v\n", err)
			return
		}
		fmt.Printf("  Valid: %t\n", pi.Valid)
		if pi.Error != "" {
			fmt.Printf("  Validation error: %s\n", pi.Error)
		}
		fmt.Printf("  Pages: %d\n", pi.PageCount)
		fmt.Printf("  Version: %s\n", pi.Version)
		if pi.Title != "" {
			fmt.Printf("  Title: %s\n", pi.Title)
		}
		if pi.Author != "" {
			fmt.Printf("  Author: %s\n", pi.Author)
		}
		if pi.DocumentID != "" {
			fmt.Printf("  Document ID: %s\n", pi.DocumentID)
		}
	}
}
