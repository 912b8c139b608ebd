package fa

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/ksef-pdf/internal/decimal"
	"github.com/rezonia/ksef-pdf/internal/model"
)

// FA XML structures. Element names are the same in FA(2) and FA(3) for
// everything the aggregate carries; tags have no namespace so both decode.
type faInvoice struct {
	XMLName      xml.Name   `xml:"Faktura"`
	Header       faHeader   `xml:"Naglowek"`
	Seller       *faParty   `xml:"Podmiot1"`
	Buyer        *faParty   `xml:"Podmiot2"`
	ThirdParties []faParty3 `xml:"Podmiot3"`
	Body         *faBody    `xml:"Fa"`
	Footer       *faFooter  `xml:"Stopka"`
}

// faHeader omits the form code, which Inspect reads
type faHeader struct {
	CreatedAt  string `xml:"DataWytworzeniaFa"`
	SystemInfo string `xml:"SystemInfo"`
}

type faIdentification struct {
	NIP         string `xml:"NIP"`
	EUCode      string `xml:"KodUE"`
	EUTaxID     string `xml:"NrVatUE"`
	CountryCode string `xml:"KodKraju"`
	OtherID     string `xml:"NrID"`
	NoID        string `xml:"BrakID"`
	Name        string `xml:"Nazwa"`
}

type faAddress struct {
	CountryCode string `xml:"KodKraju"`
	Line1       string `xml:"AdresL1"`
	Line2       string `xml:"AdresL2"`
	GLN         string `xml:"GLN"`
}

type faContact struct {
	Email string `xml:"Email"`
	Phone string `xml:"Telefon"`
}

type faParty struct {
	Identification *faIdentification `xml:"DaneIdentyfikacyjne"`
	Address        *faAddress        `xml:"Adres"`
	Correspondence *faAddress        `xml:"AdresKoresp"`
	Contacts       []faContact       `xml:"DaneKontaktowe"`
	CustomerNumber string            `xml:"NrKlienta"`
}

type faParty3 struct {
	faParty
	Role            string `xml:"Rola"`
	OtherRole       string `xml:"RolaInna"`
	RoleDescription string `xml:"OpisRoli"`
	Share           string `xml:"Udzial"`
}

// faBody is the Fa block. P_13_x/P_14_x are the per-rate net and VAT subtotals.
type faBody struct {
	Currency   string `xml:"KodWaluty"`
	IssueDate  string `xml:"P_1"`
	IssuePlace string `xml:"P_1M"`
	Number     string `xml:"P_2"`
	SaleDate   string `xml:"P_6"`
	Period     *struct {
		From string `xml:"P_6_Od"`
		To   string `xml:"P_6_Do"`
	} `xml:"OkresFa"`

	P13_1   string `xml:"P_13_1"`
	P14_1   string `xml:"P_14_1"`
	P13_2   string `xml:"P_13_2"`
	P14_2   string `xml:"P_14_2"`
	P13_3   string `xml:"P_13_3"`
	P14_3   string `xml:"P_14_3"`
	P13_4   string `xml:"P_13_4"`
	P14_4   string `xml:"P_14_4"`
	P13_5   string `xml:"P_13_5"`
	P14_5   string `xml:"P_14_5"`
	P13_6_1 string `xml:"P_13_6_1"`
	P13_6_2 string `xml:"P_13_6_2"`
	P13_6_3 string `xml:"P_13_6_3"`
	P13_7   string `xml:"P_13_7"`
	P13_8   string `xml:"P_13_8"`
	P13_9   string `xml:"P_13_9"`
	P13_10  string `xml:"P_13_10"`
	P13_11  string `xml:"P_13_11"`
	Gross   string `xml:"P_15"`

	Annotations    faAnnotations     `xml:"Adnotacje"`
	Type           string            `xml:"RodzajFaktury"`
	ReceiptInvoice string            `xml:"FP"`
	Additional     []faKeyValue      `xml:"DodatkowyOpis"`
	Lines          []faLine          `xml:"FaWiersz"`
	Reconciliation *faReconciliation `xml:"Rozliczenie"`
	Payment        *faPayment        `xml:"Platnosc"`
}

type faAnnotations struct {
	CashMethod    string `xml:"P_16"`
	SelfBilling   string `xml:"P_17"`
	ReverseCharge string `xml:"P_18"`
	SplitPayment  string `xml:"P_18A"`
	Margin        struct {
		Applies string `xml:"P_PMarzy"`
	} `xml:"PMarzy"`
}

type faKeyValue struct {
	Key   string `xml:"Klucz"`
	Value string `xml:"Wartosc"`
}

type faLine struct {
	Row          string `xml:"NrWierszaFa"`
	UUID         string `xml:"UU_ID"`
	Description  string `xml:"P_7"`
	Index        string `xml:"Indeks"`
	GTIN         string `xml:"GTIN"`
	PKWiU        string `xml:"PKWiU"`
	CN           string `xml:"CN"`
	Unit         string `xml:"P_8A"`
	Quantity     string `xml:"P_8B"`
	UnitNetPrice string `xml:"P_9A"`
	Net          string `xml:"P_11"`
	VATRate      string `xml:"P_12"`
}

type faAdjustment struct {
	Amount string `xml:"Kwota"`
	Reason string `xml:"Powod"`
}

type faReconciliation struct {
	Charges    []faAdjustment `xml:"Obciazenia"`
	Deductions []faAdjustment `xml:"Odliczenia"`
	AmountDue  string         `xml:"DoZaplaty"`
}

// faDueDescription is plain text in FA(2) and a structured period in FA(3)
type faDueDescription struct {
	Text   string `xml:",chardata"`
	Amount string `xml:"Ilosc"`
	Unit   string `xml:"Jednostka"`
	Event  string `xml:"ZdarzeniePoczatkowe"`
}

func (d *faDueDescription) String() string {
	if d == nil {
		return ""
	}
	if t := strings.TrimSpace(d.Text); t != "" {
		return t
	}
	return strings.Join(strings.Fields(d.Amount+" "+d.Unit+" "+d.Event), " ")
}

type faPayment struct {
	Paid     string `xml:"Zaplacono"`
	PaidDate string `xml:"DataZaplaty"`
	DueDates []struct {
		Date        string            `xml:"Termin"`
		Description *faDueDescription `xml:"TerminOpis"`
	} `xml:"TerminPlatnosci"`
	Method         string          `xml:"FormaPlatnosci"`
	Accounts       []faBankAccount `xml:"RachunekBankowy"`
	FactorAccounts []faBankAccount `xml:"RachunekBankowyFaktora"`
}

type faBankAccount struct {
	Number      string `xml:"NrRB"`
	SWIFT       string `xml:"SWIFT"`
	BankName    string `xml:"NazwaBanku"`
	Description string `xml:"OpisRachunku"`
}

type faFooter struct {
	Information []struct {
		Text string `xml:"StopkaFaktury"`
	} `xml:"Informacje"`
	Registries *struct {
		KRS   string `xml:"KRS"`
		REGON string `xml:"REGON"`
		BDO   string `xml:"BDO"`
	} `xml:"Rejestry"`
}

// FAAdapter decodes one FA schema version
type FAAdapter struct {
	schema model.Schema
}

// NewFA3Adapter creates the FA(3) adapter
func NewFA3Adapter() *FAAdapter {
	return &FAAdapter{schema: model.SchemaFA3}
}

// NewFA2Adapter creates the FA(2) adapter
func NewFA2Adapter() *FAAdapter {
	return &FAAdapter{schema: model.SchemaFA2}
}

// Schema returns the schema handled by the adapter
func (a *FAAdapter) Schema() model.Schema {
	return a.schema
}

// CanParse checks the root namespace and form variant
func (a *FAAdapter) CanParse(content []byte) bool {
	info, err := Inspect(content)
	return err == nil && info.Schema == a.schema
}

// Parse parses FA XML into Invoice
func (a *FAAdapter) Parse(ctx context.Context, r io.Reader) (*model.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, a.errorf("content", "failed to read content", err)
	}

	info, err := Inspect(content)
	if err != nil {
		return nil, err
	}

	var doc faInvoice
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, a.errorf("xml", "failed to parse XML", err)
	}

	return a.convertInvoice(&doc, info)
}

func (a *FAAdapter) errorf(field, message string, cause error) *model.ParseError {
	return model.NewParseError(string(a.schema), field, message, cause)
}

func (a *FAAdapter) convertInvoice(doc *faInvoice, info *DocumentInfo) (*model.Invoice, error) {
	inv := &model.Invoice{
		Header: &model.Header{
			FormCode:   info.FormCode,
			Namespace:  info.Namespace,
			SystemInfo: strings.TrimSpace(doc.Header.SystemInfo),
		},
		Seller: convertParty(doc.Seller),
		Buyer:  convertParty(doc.Buyer),
	}
	if t, err := parseDate(doc.Header.CreatedAt); err == nil {
		inv.Header.CreatedAt = t
	}

	for i, tp := range doc.ThirdParties {
		third := model.ThirdParty{
			Party:           *convertParty(&tp.faParty),
			Role:            thirdPartyRole(tp),
			RoleDescription: strings.TrimSpace(tp.RoleDescription),
		}
		share, err := money.ParseOptional(tp.Share)
		if err != nil {
			return nil, a.errorf(fmt.Sprintf("Podmiot3[%d]/Udzial", i+1), "invalid share", err)
		}
		third.Share = share
		inv.ThirdParties = append(inv.ThirdParties, third)
	}

	if doc.Body != nil {
		body, err := a.convertBody(doc.Body)
		if err != nil {
			return nil, err
		}
		inv.Body = body
	}

	if f := doc.Footer; f != nil {
		footer := &model.Footer{}
		for _, i := range f.Information {
			if t := strings.TrimSpace(i.Text); t != "" {
				footer.Text = append(footer.Text, t)
			}
		}
		if r := f.Registries; r != nil {
			footer.KRS = strings.TrimSpace(r.KRS)
			footer.REGON = strings.TrimSpace(r.REGON)
			footer.BDO = strings.TrimSpace(r.BDO)
		}
		inv.Footer = footer
	}

	return inv, nil
}

func thirdPartyRole(tp faParty3) string {
	if role := strings.TrimSpace(tp.Role); role != "" {
		return role
	}
	if strings.TrimSpace(tp.OtherRole) == model.FlagTrue {
		return "other"
	}
	return ""
}

func convertParty(p *faParty) *model.Party {
	if p == nil {
		return nil
	}
	party := &model.Party{
		Address:               convertAddress(p.Address),
		CorrespondenceAddress: convertAddress(p.Correspondence),
		CustomerNumber:        strings.TrimSpace(p.CustomerNumber),
	}
	if id := p.Identification; id != nil {
		party.Identification = &model.Identification{
			TaxID:       strings.TrimSpace(id.NIP),
			EUCode:      strings.TrimSpace(id.EUCode),
			EUTaxID:     strings.TrimSpace(id.EUTaxID),
			CountryCode: strings.TrimSpace(id.CountryCode),
			OtherID:     strings.TrimSpace(id.OtherID),
			NoID:        strings.TrimSpace(id.NoID) == model.FlagTrue,
			Name:        strings.TrimSpace(id.Name),
		}
	}
	for _, c := range p.Contacts {
		party.Contacts = append(party.Contacts, model.Contact{
			Email: strings.TrimSpace(c.Email),
			Phone: strings.TrimSpace(c.Phone),
		})
	}
	return party
}

func convertAddress(a *faAddress) *model.Address {
	if a == nil {
		return nil
	}
	return &model.Address{
		CountryCode: strings.TrimSpace(a.CountryCode),
		Line1:       strings.TrimSpace(a.Line1),
		Line2:       strings.TrimSpace(a.Line2),
		GLN:         strings.TrimSpace(a.GLN),
	}
}

// rateBuckets lists the subtotal pairs in schema order with display labels
func rateBuckets(b *faBody) []struct{ bucket, label, net, vat string } {
	return []struct{ bucket, label, net, vat string }{
		{"1", "23%", b.P13_1, b.P14_1},
		{"2", "8%", b.P13_2, b.P14_2},
		{"3", "5%", b.P13_3, b.P14_3},
		{"4", "4% (taxi)", b.P13_4, b.P14_4},
		{"5", "OSS", b.P13_5, b.P14_5},
		{"6_1", "0% domestic", b.P13_6_1, ""},
		{"6_2", "0% intra-EU", b.P13_6_2, ""},
		{"6_3", "0% export", b.P13_6_3, ""},
		{"7", "exempt", b.P13_7, ""},
		{"8", "not subject", b.P13_8, ""},
		{"9", "not subject (art. 100)", b.P13_9, ""},
		{"10", "reverse charge", b.P13_10, ""},
		{"11", "margin", b.P13_11, ""},
	}
}

func (a *FAAdapter) convertBody(b *faBody) (*model.Body, error) {
	body := &model.Body{
		Currency:       strings.TrimSpace(b.Currency),
		IssuePlace:     strings.TrimSpace(b.IssuePlace),
		Number:         strings.TrimSpace(b.Number),
		Type:           model.InvoiceType(strings.TrimSpace(b.Type)),
		ReceiptInvoice: strings.TrimSpace(b.ReceiptInvoice),
		Annotations: model.Annotations{
			CashMethod:      strings.TrimSpace(b.Annotations.CashMethod),
			SelfBilling:     strings.TrimSpace(b.Annotations.SelfBilling),
			ReverseCharge:   strings.TrimSpace(b.Annotations.ReverseCharge),
			SplitPayment:    strings.TrimSpace(b.Annotations.SplitPayment),
			MarginProcedure: strings.TrimSpace(b.Annotations.Margin.Applies),
		},
	}

	// an unparseable issue date stays zero and is reported by validation
	if t, err := parseDate(b.IssueDate); err == nil {
		body.IssueDate = t
	}
	if t, err := parseDate(b.SaleDate); err == nil {
		body.SaleDate = &t
	}
	if p := b.Period; p != nil {
		from, _ := parseDate(p.From)
		to, _ := parseDate(p.To)
		body.Period = &model.Period{From: from, To: to}
	}

	for _, rb := range rateBuckets(b) {
		if strings.TrimSpace(rb.net) == "" && strings.TrimSpace(rb.vat) == "" {
			continue
		}
		net, err := a.amount("P_13_"+rb.bucket, rb.net)
		if err != nil {
			return nil, err
		}
		vat, err := a.amount("P_14_"+rb.bucket, rb.vat)
		if err != nil {
			return nil, err
		}
		body.Subtotals = append(body.Subtotals, model.Subtotal{Bucket: rb.bucket, Label: rb.label, Net: net, VAT: vat})
	}

	gross, err := a.amount("P_15", b.Gross)
	if err != nil {
		return nil, err
	}
	body.Gross = gross

	for _, kv := range b.Additional {
		body.AdditionalInfo = append(body.AdditionalInfo, model.KeyValue{
			Key:   strings.TrimSpace(kv.Key),
			Value: strings.TrimSpace(kv.Value),
		})
	}

	for i, l := range b.Lines {
		line, err := a.convertLine(i+1, l)
		if err != nil {
			return nil, err
		}
		body.Lines = append(body.Lines, line)
	}

	if r := b.Reconciliation; r != nil {
		rec, err := a.convertReconciliation(r)
		if err != nil {
			return nil, err
		}
		body.Reconciliation = rec
	}

	if p := b.Payment; p != nil {
		body.Payment = convertPayment(p)
	}

	return body, nil
}

func (a *FAAdapter) convertLine(n int, l faLine) (model.LineItem, error) {
	field := func(name string) string {
		return fmt.Sprintf("FaWiersz[%d]/%s", n, name)
	}

	line := model.LineItem{
		UUID:        strings.TrimSpace(l.UUID),
		Description: strings.TrimSpace(l.Description),
		Index:       strings.TrimSpace(l.Index),
		GTIN:        strings.TrimSpace(l.GTIN),
		PKWiU:       strings.TrimSpace(l.PKWiU),
		CN:          strings.TrimSpace(l.CN),
		Unit:        strings.TrimSpace(l.Unit),
		VATRate:     strings.TrimSpace(l.VATRate),
	}
	if row := strings.TrimSpace(l.Row); row != "" {
		v, err := strconv.Atoi(row)
		if err != nil {
			return line, a.errorf(field("NrWierszaFa"), "invalid row number", err)
		}
		line.Row = v
	}

	var err error
	if line.Quantity, err = money.ParseOptional(l.Quantity); err != nil {
		return line, a.errorf(field("P_8B"), "invalid quantity", err)
	}
	if line.UnitNetPrice, err = money.ParseOptional(l.UnitNetPrice); err != nil {
		return line, a.errorf(field("P_9A"), "invalid unit net price", err)
	}
	if line.Net, err = a.amount(field("P_11"), l.Net); err != nil {
		return line, err
	}
	return line, nil
}

func (a *FAAdapter) convertReconciliation(r *faReconciliation) (*model.Reconciliation, error) {
	rec := &model.Reconciliation{}
	for i, c := range r.Charges {
		amt, err := a.amount(fmt.Sprintf("Obciazenia[%d]/Kwota", i+1), c.Amount)
		if err != nil {
			return nil, err
		}
		rec.Charges = append(rec.Charges, model.Adjustment{Amount: amt, Reason: strings.TrimSpace(c.Reason)})
	}
	for i, d := range r.Deductions {
		amt, err := a.amount(fmt.Sprintf("Odliczenia[%d]/Kwota", i+1), d.Amount)
		if err != nil {
			return nil, err
		}
		rec.Deductions = append(rec.Deductions, model.Adjustment{Amount: amt, Reason: strings.TrimSpace(d.Reason)})
	}
	due, err := money.ParseOptional(r.AmountDue)
	if err != nil {
		return nil, a.errorf("DoZaplaty", "invalid amount due", err)
	}
	rec.AmountDue = due
	return rec, nil
}

func convertPayment(p *faPayment) *model.Payment {
	pay := &model.Payment{
		Method: strings.TrimSpace(p.Method),
		Paid:   strings.TrimSpace(p.Paid) == model.FlagTrue,
	}
	if t, err := parseDate(p.PaidDate); err == nil {
		pay.PaidDate = &t
	}
	for _, d := range p.DueDates {
		due := model.DueDate{Description: d.Description.String()}
		if t, err := parseDate(d.Date); err == nil {
			due.Date = &t
		}
		pay.DueDates = append(pay.DueDates, due)
	}
	pay.Accounts = convertAccounts(p.Accounts)
	pay.FactorAccounts = convertAccounts(p.FactorAccounts)
	return pay
}

func convertAccounts(in []faBankAccount) []model.BankAccount {
	var out []model.BankAccount
	for _, a := range in {
		out = append(out, model.BankAccount{
			Number:      strings.TrimSpace(a.Number),
			SWIFT:       strings.TrimSpace(a.SWIFT),
			BankName:    strings.TrimSpace(a.BankName),
			Description: strings.TrimSpace(a.Description),
		})
	}
	return out
}

// amount parses a required amount; empty input is zero
func (a *FAAdapter) amount(field, s string) (decimal.Decimal, error) {
	d, err := money.ParseOptional(s)
	if err != nil {
		return money.Zero, a.errorf(field, "invalid amount", err)
	}
	if d == nil {
		return money.Zero, nil
	}
	return *d, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}
