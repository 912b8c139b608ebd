package composer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"

	money "github.com/rezonia/ksef-pdf/internal/decimal"
	"github.com/rezonia/ksef-pdf/internal/model"
)

const (
	domesticCountry = "PL"
	dateLayout      = "2006-01-02"
)

var invoiceTitles = map[model.InvoiceType]string{
	model.InvoiceTypeVAT:        "VAT invoice",
	model.InvoiceTypeCorrection: "Correcting invoice",
	model.InvoiceTypeAdvance:    "Advance invoice",
	model.InvoiceTypeSettlement: "Settlement invoice",
	model.InvoiceTypeSimplified: "Simplified invoice",
	model.InvoiceTypeKorZal:     "Correcting advance invoice",
	model.InvoiceTypeKorRoz:     "Correcting settlement invoice",
}

// partyView is one side-by-side party block
type partyView struct {
	Role     string
	Name     string
	TaxID    string
	PersonID string
	Address  []string
	Contacts []string
}

// thirdPartyView is a Podmiot3 entry rendered below the header
type thirdPartyView struct {
	partyView
	Relation string
}

type headerView struct {
	Seller    partyView
	Buyer     partyView
	Title     string
	Number    string
	IssueDate string
	Place     string
	SaleDate  string
	Period    string
	Badge     string
}

type lineView struct {
	Row       string
	Desc      string
	Codes     []string
	Quantity  string
	UnitPrice string
	Net       string
	VATRate   string
}

type amountView struct {
	Label string
	Value string
}

type summaryView struct {
	Currency  string
	Rates     []amountView
	Net       string
	VAT       string
	Gross     string
	AmountDue string
}

type paymentView struct {
	DueDate  string
	Method   string
	Account  string
	BankName string
	Paid     string
}

type footerView struct {
	Text        []string
	Registries  string
	GeneratedAt string
}

// sections holds every block of the document. Optional blocks are nil when absent.
type sections struct {
	Header       headerView
	ThirdParties []thirdPartyView
	Lines        []lineView
	Summary      summaryView
	Annotations  []string
	Payment      *paymentView
	Additional   []amountView
	Footer       footerView
}

func buildSections(ic *model.InvoiceContext, generatedAt time.Time) *sections {
	inv := ic.Invoice()
	s := &sections{}

	s.Header = buildHeader(inv, ic.Issuance())
	for _, tp := range inv.ThirdParties {
		tp := tp
		role := tp.RoleDescription
		if role == "" && tp.Role != "" {
			role = "Role " + tp.Role
		}
		if tp.Share != nil {
			role = strings.TrimSpace(fmt.Sprintf("%s (share %s%%)", role, tp.Share.String()))
		}
		s.ThirdParties = append(s.ThirdParties, thirdPartyView{
			partyView: buildParty("Third party", &tp.Party),
			Relation:  role,
		})
	}

	if b := inv.Body; b != nil {
		s.Lines = buildLines(b.Lines)
		s.Summary = buildSummary(b)
		s.Annotations = buildAnnotations(b)
		s.Payment = buildPayment(b.Payment)
		for _, kv := range b.AdditionalInfo {
			s.Additional = append(s.Additional, amountView{Label: kv.Key, Value: kv.Value})
		}
	}

	s.Footer = buildFooter(inv.Footer, generatedAt)
	return s
}

func buildHeader(inv *model.Invoice, meta model.IssuanceMetadata) headerView {
	h := headerView{
		Seller: buildParty("Seller", inv.Seller),
		Buyer:  buildParty("Buyer", inv.Buyer),
	}

	if meta.Mode.IsOnline() && meta.KSeFNumber != "" {
		h.Badge = "KSeF number: " + meta.KSeFNumber
	} else {
		h.Badge = "OFFLINE"
	}

	b := inv.Body
	if b == nil {
		h.Title = "Invoice"
		return h
	}

	h.Title = invoiceTitles[b.Type]
	if h.Title == "" {
		h.Title = "Invoice"
	}
	h.Number = b.Number
	if !b.IssueDate.IsZero() {
		h.IssueDate = b.IssueDate.Format(dateLayout)
	}
	h.Place = b.IssuePlace
	if b.SaleDate != nil {
		h.SaleDate = b.SaleDate.Format(dateLayout)
	}
	if b.Period != nil {
		h.Period = b.Period.From.Format(dateLayout) + " - " + b.Period.To.Format(dateLayout)
	}
	return h
}

func buildParty(role string, p *model.Party) partyView {
	v := partyView{Role: role}
	if p == nil {
		return v
	}

	if id := p.Identification; id != nil {
		v.Name = id.Name
		switch {
		case id.TaxID != "":
			v.TaxID = "NIP: " + id.TaxID
		case id.EUTaxID != "":
			v.TaxID = "VAT UE: " + id.EUCode + id.EUTaxID
		case id.OtherID != "":
			v.TaxID = "ID: " + strings.TrimSpace(id.CountryCode+" "+id.OtherID)
		case id.NoID:
			v.TaxID = "No tax ID"
		}
	}
	if p.PersonID != "" {
		v.PersonID = "PESEL: " + p.PersonID
	}

	if a := p.Address; a != nil {
		for _, line := range []string{a.Line1, a.Line2} {
			if strings.TrimSpace(line) != "" {
				v.Address = append(v.Address, line)
			}
		}
		if cc := strings.ToUpper(strings.TrimSpace(a.CountryCode)); cc != "" && cc != domesticCountry && len(v.Address) > 0 {
			last := len(v.Address) - 1
			v.Address[last] = v.Address[last] + ", " + cc
		}
	}

	for _, c := range p.Contacts {
		if c.Email != "" {
			v.Contacts = append(v.Contacts, "E-mail: "+c.Email)
		}
		if c.Phone != "" {
			v.Contacts = append(v.Contacts, "Phone: "+formatPhone(c.Phone))
		}
	}
	return v
}

// formatPhone renders a number in international format, or returns it as given
// when it cannot be parsed
func formatPhone(raw string) string {
	num, err := libphonenumber.Parse(raw, domesticCountry)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.INTERNATIONAL)
}

func buildLines(items []model.LineItem) []lineView {
	lines := make([]lineView, 0, len(items))
	for i, item := range items {
		row := item.Row
		if row == 0 {
			row = i + 1
		}
		l := lineView{
			Row:       fmt.Sprintf("%d", row),
			Desc:      item.Description,
			UnitPrice: money.FormatOptional(item.UnitNetPrice),
			Net:       money.Format(item.Net),
			VATRate:   vatRateLabel(item.VATRate),
		}
		if item.Quantity != nil {
			l.Quantity = strings.TrimSpace(money.FormatQuantity(*item.Quantity) + " " + item.Unit)
		}
		for _, code := range []struct{ label, value string }{
			{"Index", item.Index},
			{"GTIN", item.GTIN},
			{"PKWiU", item.PKWiU},
			{"CN", item.CN},
		} {
			if code.value != "" {
				l.Codes = append(l.Codes, code.label+": "+code.value)
			}
		}
		lines = append(lines, l)
	}
	return lines
}

// vatRateLabel appends a percent sign to numeric rates and keeps codes like "zw" as is
func vatRateLabel(rate string) string {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return ""
	}
	for _, c := range rate {
		if (c < '0' || c > '9') && c != '.' && c != ',' {
			return rate
		}
	}
	return rate + "%"
}

func buildSummary(b *model.Body) summaryView {
	s := summaryView{
		Currency: b.Currency,
		Net:      money.Format(b.NetTotal()),
		VAT:      money.Format(b.VATTotal()),
		Gross:    money.Format(b.Gross),
	}
	if len(b.Subtotals) > 1 {
		for _, st := range b.Subtotals {
			label := st.Label
			if label == "" {
				label = "Rate " + st.Bucket
			}
			s.Rates = append(s.Rates, amountView{
				Label: label,
				Value: money.Format(st.Net) + " / " + money.Format(st.VAT),
			})
		}
	}
	if r := b.Reconciliation; r != nil && r.AmountDue != nil && !r.AmountDue.Equal(b.Gross) {
		s.AmountDue = money.Format(*r.AmountDue)
	}
	return s
}

func buildAnnotations(b *model.Body) []string {
	var out []string
	a := b.Annotations
	for _, f := range []struct{ flag, text string }{
		{a.SplitPayment, "Split payment mechanism"},
		{a.ReverseCharge, "Reverse charge"},
		{a.MarginProcedure, "Margin procedure"},
		{b.ReceiptInvoice, "Invoice issued for a receipt"},
		{a.CashMethod, "Cash accounting method"},
		{a.SelfBilling, "Self-billing"},
	} {
		if f.flag == model.FlagTrue {
			out = append(out, f.text)
		}
	}
	return out
}

func buildPayment(p *model.Payment) *paymentView {
	if p == nil {
		return nil
	}
	v := &paymentView{}
	if len(p.DueDates) > 0 {
		v.DueDate = p.DueDates[0].String()
	}
	if p.Method != "" {
		v.Method = model.PaymentMethodDescription(p.Method)
	}
	if len(p.Accounts) > 0 {
		v.Account = p.Accounts[0].Number
		v.BankName = p.Accounts[0].BankName
	}
	if p.Paid {
		v.Paid = "Paid"
		if p.PaidDate != nil {
			v.Paid += " on " + p.PaidDate.Format(dateLayout)
		}
	}
	if *v == (paymentView{}) {
		return nil
	}
	return v
}

func buildFooter(f *model.Footer, generatedAt time.Time) footerView {
	v := footerView{
		GeneratedAt: "Generated at " + generatedAt.Format("2006-01-02 15:04:05 MST"),
	}
	if f == nil {
		return v
	}
	v.Text = f.Text

	var regs []string
	for _, r := range []struct{ label, value string }{
		{"KRS", f.KRS},
		{"REGON", f.REGON},
		{"BDO", f.BDO},
	} {
		if r.value != "" {
			regs = append(regs, r.label+": "+r.value)
		}
	}
	v.Registries = strings.Join(regs, " | ")
	return v
}
