// Package report exports batch validation results as JSON, a text table, CSV or XLSX.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/processor"
)

// Format is an export format
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat maps a flag value to a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatTable, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", model.NewArgumentError("report.ParseFormat", "format",
			fmt.Sprintf("unsupported output format %q (json, table, csv, xlsx)", s))
	}
}

// Entry is the validation result of one file
type Entry struct {
	File          string   `json:"file"`
	Schema        string   `json:"schema,omitempty"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	SellerNIP     string   `json:"seller_nip,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	KSeFNumber    string   `json:"ksef_number,omitempty"`
	Valid         bool     `json:"valid"`
	InvoiceLink   string   `json:"invoice_link,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// NewEntry summarizes a pipeline result
func NewEntry(file string, r *processor.Result) Entry {
	e := Entry{File: file}
	if r == nil {
		e.Errors = []string{"no result"}
		return e
	}

	e.Schema = string(r.Schema)
	e.InvoiceLink = r.Links.Invoice
	e.Warnings = r.Warnings

	if ic := r.Context; ic != nil {
		inv := ic.Invoice()
		if inv.Body != nil {
			e.InvoiceNumber = inv.Body.Number
		}
		e.SellerNIP = inv.Seller.TaxID()
		e.Mode = ic.Issuance().Mode.String()
		e.KSeFNumber = ic.Issuance().KSeFNumber
	}

	switch {
	case r.Outcome != nil:
		e.Valid = r.Outcome.Valid
		e.Errors = r.Outcome.Errors
		if r.Error != nil && r.Outcome.Valid {
			e.Valid = false
			e.Errors = append(e.Errors, r.Error.Error())
		}
	case r.Error != nil:
		e.Errors = []string{r.Error.Error()}
	default:
		e.Valid = true
	}
	return e
}

// Report is an ordered list of entries
type Report struct {
	Entries []Entry `json:"results"`
}

// Add appends an entry
func (r *Report) Add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Valid reports whether every entry passed
func (r *Report) Valid() bool {
	for _, e := range r.Entries {
		if !e.Valid {
			return false
		}
	}
	return true
}

// Counts returns the number of valid and invalid entries
func (r *Report) Counts() (valid, invalid int) {
	for _, e := range r.Entries {
		if e.Valid {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid
}

var columns = []string{"file", "schema", "invoice_number", "seller_nip", "mode", "ksef_number", "valid", "errors", "warnings", "invoice_link"}

func (e Entry) row() []string {
	return []string{
		e.File,
		e.Schema,
		e.InvoiceNumber,
		e.SellerNIP,
		e.Mode,
		e.KSeFNumber,
		strconv.FormatBool(e.Valid),
		strings.Join(e.Errors, "; "),
		strings.Join(e.Warnings, "; "),
		e.InvoiceLink,
	}
}

// Write exports the report in the given format
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatTable:
		return r.WriteTable(w)
	case FormatCSV:
		return r.WriteCSV(w)
	case FormatXLSX:
		return r.WriteXLSX(w)
	default:
		return model.NewArgumentError("report.Write", "format", fmt.Sprintf("unsupported output format %q", f))
	}
}

// WriteJSON writes indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteTable writes one line per file followed by its findings
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSCHEMA\tNUMBER\tMODE\tSTATUS")
	fmt.Fprintln(tw, "----\t------\t------\t----\t------")

	for _, e := range r.Entries {
		status := "VALID"
		if !e.Valid {
			status = "INVALID"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.File, e.Schema, e.InvoiceNumber, e.Mode, status)
		for _, msg := range e.Errors {
			fmt.Fprintf(tw, "  - %s\t\t\t\t\n", msg)
		}
		for _, msg := range e.Warnings {
			fmt.Fprintf(tw, "  ! %s\t\t\t\t\n", msg)
		}
	}

	valid, invalid := r.Counts()
	fmt.Fprintf(tw, "\n%d valid, %d invalid\t\t\t\t\n", valid, invalid)
	return tw.Flush()
}

// WriteCSV writes a header row and one row per entry
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, e := range r.Entries {
		if err := cw.Write(e.row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Validation"

// WriteXLSX writes a workbook with a single sheet in CSV column order
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, h := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for rowNo, e := range r.Entries {
		for i, value := range e.row() {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
