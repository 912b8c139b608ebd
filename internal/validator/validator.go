// Package validator checks an FA invoice aggregate against structural and
// business rules. Every rule runs; findings accumulate in an Outcome.
package validator

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/ksef-pdf/internal/decimal"
	"github.com/rezonia/ksef-pdf/internal/ksef"
	"github.com/rezonia/ksef-pdf/internal/model"
)

// Known FA namespaces
const (
	NamespaceFA2 = model.NamespaceFA2
	NamespaceFA3 = model.NamespaceFA3
)

// DefaultForm is the form code accepted unless overridden
var DefaultForm = model.FormCode{
	Value:         "FA",
	SystemCode:    "FA (3)",
	SchemaVersion: "1-0E",
	Variant:       3,
}

// FormFA2 is the form code of FA (2) documents
var FormFA2 = model.FormCode{
	Value:         "FA",
	SystemCode:    "FA (2)",
	SchemaVersion: "1-0E",
	Variant:       2,
}

// FormForSchema returns the expected form code for a detected schema
func FormForSchema(s model.Schema) model.FormCode {
	if s == model.SchemaFA2 {
		return FormFA2
	}
	return DefaultForm
}

var hundred = decimal.NewFromInt(100)

// Validator runs the invoice rules
type Validator struct {
	expected   model.FormCode
	namespaces []string
	logger     zerolog.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithExpectedForm sets the form code and variant the header must carry
func WithExpectedForm(fc model.FormCode) Option {
	return func(v *Validator) {
		v.expected = fc
	}
}

// WithNamespaces replaces the list of accepted root namespaces
func WithNamespaces(ns ...string) Option {
	return func(v *Validator) {
		v.namespaces = ns
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// New creates a validator for FA (3) by default
func New(opts ...Option) *Validator {
	v := &Validator{
		expected:   DefaultForm,
		namespaces: []string{NamespaceFA2, NamespaceFA3},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the invoice aggregate. It never fails; findings are data.
func (v *Validator) Validate(inv *model.Invoice) *Outcome {
	out := NewOutcome()
	if inv == nil {
		out.AddError("invoice is missing")
		return out
	}

	v.checkHeader(inv.Header, out)
	v.checkParty("seller", inv.Seller, out)
	v.checkParty("buyer", inv.Buyer, out)
	for i := range inv.ThirdParties {
		tp := &inv.ThirdParties[i]
		role := fmt.Sprintf("third party %d", i+1)
		v.checkParty(role, &tp.Party, out)
		if tp.Share != nil && (!money.IsNonNegative(*tp.Share) || tp.Share.GreaterThan(hundred)) {
			out.AddWarningf("%s: share %s%% is outside 0..100", role, tp.Share.String())
		}
	}
	v.checkBody(inv.Body, out)

	v.logger.Debug().
		Bool("valid", out.Valid).
		Int("errors", len(out.Errors)).
		Int("warnings", len(out.Warnings)).
		Msg("invoice validated")

	return out
}

// ValidateContext runs Validate and adds the issuance mode rules
func (v *Validator) ValidateContext(ic *model.InvoiceContext) *Outcome {
	if ic == nil {
		out := NewOutcome()
		out.AddError("invoice context is missing")
		return out
	}

	out := v.Validate(ic.Invoice())
	meta := ic.Issuance()
	if !meta.Mode.IsOnline() {
		return out
	}

	if strings.TrimSpace(meta.KSeFNumber) == "" {
		out.AddError("online invoice has no KSeF number")
		return out
	}
	if r := ksef.Validate(meta.KSeFNumber); !r.Valid {
		out.AddErrorf("KSeF number %q is invalid: %s", meta.KSeFNumber, r.Message())
		return out
	}

	inv := ic.Invoice()
	if inv == nil {
		return out
	}
	nip, _ := ksef.ExtractNIP(meta.KSeFNumber)
	if seller := inv.Seller.TaxID(); seller != "" && seller != nip {
		out.AddWarningf("KSeF number NIP %s does not match seller tax ID %s", nip, seller)
	}
	return out
}

func (v *Validator) checkHeader(h *model.Header, out *Outcome) {
	if h == nil {
		out.AddError("header is missing")
		return
	}

	fc := h.FormCode
	if fc.SystemCode != v.expected.SystemCode || fc.Variant != v.expected.Variant {
		out.AddErrorf("form code %q variant %d is not supported, expected %q variant %d",
			fc.SystemCode, fc.Variant, v.expected.SystemCode, v.expected.Variant)
	}
	if fc.SchemaVersion != v.expected.SchemaVersion {
		out.AddWarningf("schema version %q differs from expected %q", fc.SchemaVersion, v.expected.SchemaVersion)
	}

	if h.Namespace != "" && len(v.namespaces) > 0 && !contains(v.namespaces, h.Namespace) {
		out.AddErrorf("namespace %q is not a known FA namespace", h.Namespace)
	}
}

func (v *Validator) checkParty(role string, p *model.Party, out *Outcome) {
	if p == nil {
		out.AddErrorf("%s is missing", role)
		return
	}

	id := p.Identification
	switch {
	case id == nil:
		out.AddErrorf("%s: identification data is missing", role)
	case strings.TrimSpace(id.TaxID) == "":
		out.AddErrorf("%s: tax ID is missing", role)
	case !ValidNIP(id.TaxID):
		out.AddErrorf("%s: tax ID %q fails the NIP checksum", role, id.TaxID)
	}

	addr := p.Address
	if addr == nil {
		out.AddErrorf("%s: address is missing", role)
		return
	}
	if strings.TrimSpace(addr.Line1) == "" {
		out.AddErrorf("%s: address line 1 is missing", role)
	}
	if strings.TrimSpace(addr.Line2) == "" {
		out.AddErrorf("%s: address line 2 is missing", role)
	}
	switch cc := strings.TrimSpace(addr.CountryCode); {
	case cc == "":
		out.AddErrorf("%s: country code is missing", role)
	case len(cc) != 2:
		out.AddWarningf("%s: country code %q should have 2 characters", role, cc)
	}
}

func (v *Validator) checkBody(b *model.Body, out *Outcome) {
	if b == nil {
		out.AddError("invoice body is missing")
		return
	}

	if strings.TrimSpace(b.Currency) == "" {
		out.AddError("currency code is missing")
	}
	if strings.TrimSpace(b.Number) == "" {
		out.AddError("invoice number is missing")
	}
	if strings.TrimSpace(string(b.Type)) == "" {
		out.AddError("invoice type is missing")
	}
	if b.IssueDate.IsZero() {
		out.AddError("issue date is missing or invalid")
	}

	if len(b.Lines) == 0 {
		out.AddError("invoice has no line items")
	}
	for i, line := range b.Lines {
		n := i + 1
		if strings.TrimSpace(line.Description) == "" {
			out.AddErrorf("line item %d: description is missing", n)
		}
		if strings.TrimSpace(line.VATRate) == "" {
			out.AddErrorf("line item %d: VAT rate is missing", n)
		}
		if line.Row != 0 && line.Row != n {
			out.AddWarningf("line item %d: row number %d is out of sequence", n, line.Row)
		}
	}

	v.checkTotals(b, out)
	v.checkPayment(b.Payment, out)
}

func (v *Validator) checkTotals(b *model.Body, out *Outcome) {
	net := b.NetTotal()
	vat := b.VATTotal()

	if len(b.Lines) > 0 {
		nets := make([]decimal.Decimal, len(b.Lines))
		for i, l := range b.Lines {
			nets[i] = l.Net
		}
		if lines := money.Sum(nets); !money.WithinTolerance(lines, net) {
			out.AddWarningf("sum of line item net values %s differs from net subtotal across all rates %s",
				lines.StringFixed(2), net.StringFixed(2))
		}
	}

	if expected := net.Add(vat); !money.WithinTolerance(b.Gross, expected) {
		out.AddWarningf("gross total %s differs from net plus VAT %s",
			b.Gross.StringFixed(2), expected.StringFixed(2))
	}

	r := b.Reconciliation
	if r == nil || r.AmountDue == nil {
		return
	}
	expected := b.Gross
	for _, c := range r.Charges {
		expected = expected.Add(c.Amount)
	}
	for _, d := range r.Deductions {
		expected = expected.Sub(d.Amount)
	}
	if !money.WithinTolerance(*r.AmountDue, expected) {
		out.AddWarningf("amount due %s differs from gross plus charges minus deductions %s",
			r.AmountDue.StringFixed(2), expected.StringFixed(2))
	}
}

func (v *Validator) checkPayment(p *model.Payment, out *Outcome) {
	if p == nil {
		return
	}
	if p.Method != "" && !model.IsKnownPaymentMethod(p.Method) {
		out.AddErrorf("payment method %q is not a known code", p.Method)
	}
	for i, d := range p.DueDates {
		if d.Date == nil && strings.TrimSpace(d.Description) == "" {
			out.AddWarningf("payment due date %d has neither a date nor a description", i+1)
		}
	}
	for i, a := range p.Accounts {
		if strings.TrimSpace(a.Number) == "" {
			out.AddWarningf("bank account %d has no account number", i+1)
		}
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
