package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlagTrue is the value FA schemas use for a set annotation flag ("2" means not set).
const FlagTrue = "1"

// InvoiceType is the FA RodzajFaktury code
type InvoiceType string

const (
	InvoiceTypeVAT        InvoiceType = "VAT"
	InvoiceTypeCorrection InvoiceType = "KOR"
	InvoiceTypeAdvance    InvoiceType = "ZAL"
	InvoiceTypeSettlement InvoiceType = "ROZ"
	InvoiceTypeSimplified InvoiceType = "UPR"
	InvoiceTypeKorZal     InvoiceType = "KOR_ZAL"
	InvoiceTypeKorRoz     InvoiceType = "KOR_ROZ"
)

// Invoice is the full invoice aggregate. It is treated as immutable once built.
type Invoice struct {
	Header       *Header      `json:"header,omitempty"`
	Seller       *Party       `json:"seller,omitempty"`
	Buyer        *Party       `json:"buyer,omitempty"`
	ThirdParties []ThirdParty `json:"third_parties,omitempty"`
	Body         *Body        `json:"body,omitempty"`
	Footer       *Footer      `json:"footer,omitempty"`
}

// FormCode identifies the schema the document claims to follow
type FormCode struct {
	Value         string `json:"value"`          // "FA"
	SystemCode    string `json:"system_code"`    // "FA (3)"
	SchemaVersion string `json:"schema_version"` // "1-0E"
	Variant       int    `json:"variant"`
}

// Header is the Naglowek block
type Header struct {
	FormCode   FormCode  `json:"form_code"`
	Namespace  string    `json:"namespace,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	SystemInfo string    `json:"system_info,omitempty"`
}

// Identification holds the tax identity of a party
type Identification struct {
	TaxID       string `json:"tax_id,omitempty"`
	EUCode      string `json:"eu_code,omitempty"`
	EUTaxID     string `json:"eu_tax_id,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	OtherID     string `json:"other_id,omitempty"`
	NoID        bool   `json:"no_id,omitempty"`
	Name        string `json:"name"`
}

// Address is a two-line FA address
type Address struct {
	CountryCode string `json:"country_code"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	GLN         string `json:"gln,omitempty"`
}

// Contact is one DaneKontaktowe entry
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Party is a seller, buyer or third party
type Party struct {
	Identification        *Identification `json:"identification,omitempty"`
	Address               *Address        `json:"address,omitempty"`
	CorrespondenceAddress *Address        `json:"correspondence_address,omitempty"`
	Contacts              []Contact       `json:"contacts,omitempty"`
	PersonID              string          `json:"person_id,omitempty"`
	CustomerNumber        string          `json:"customer_number,omitempty"`
}

// TaxID returns the party tax id or an empty string
func (p *Party) TaxID() string {
	if p == nil || p.Identification == nil {
		return ""
	}
	return p.Identification.TaxID
}

// Name returns the party name or an empty string
func (p *Party) Name() string {
	if p == nil || p.Identification == nil {
		return ""
	}
	return p.Identification.Name
}

// ThirdParty is a Podmiot3 entry
type ThirdParty struct {
	Party
	Role            string           `json:"role,omitempty"`
	RoleDescription string           `json:"role_description,omitempty"`
	Share           *decimal.Decimal `json:"share,omitempty"`
}

// Period is the invoice coverage period (OkresFa)
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Subtotal is one per-rate net/VAT pair (P_13_x / P_14_x)
type Subtotal struct {
	Bucket string          `json:"bucket"`
	Label  string          `json:"label"`
	Net    decimal.Decimal `json:"net"`
	VAT    decimal.Decimal `json:"vat"`
}

// Body is the Fa block
type Body struct {
	Currency       string          `json:"currency"`
	IssueDate      time.Time       `json:"issue_date"`
	IssuePlace     string          `json:"issue_place,omitempty"`
	Number         string          `json:"number"`
	Type           InvoiceType     `json:"type"`
	SaleDate       *time.Time      `json:"sale_date,omitempty"`
	Period         *Period         `json:"period,omitempty"`
	Subtotals      []Subtotal      `json:"subtotals,omitempty"`
	Gross          decimal.Decimal `json:"gross"`
	Lines          []LineItem      `json:"lines,omitempty"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
	Payment        *Payment        `json:"payment,omitempty"`
	Annotations    Annotations     `json:"annotations"`
	ReceiptInvoice string          `json:"receipt_invoice,omitempty"`
	AdditionalInfo []KeyValue      `json:"additional_info,omitempty"`
}

// NetTotal sums the declared net subtotals across rates
func (b *Body) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.Subtotals {
		total = total.Add(s.Net)
	}
	return total
}

// VATTotal sums the declared VAT subtotals across rates
func (b *Body) VATTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range b.Subtotals {
		total = total.Add(s.VAT)
	}
	return total
}

// KeyValue is a DodatkowyOpis entry
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LineItem is one FaWiersz row
type LineItem struct {
	Row          int              `json:"row"`
	UUID         string           `json:"uuid,omitempty"`
	Description  string           `json:"description"`
	Index        string           `json:"index,omitempty"`
	GTIN         string           `json:"gtin,omitempty"`
	PKWiU        string           `json:"pkwiu,omitempty"`
	CN           string           `json:"cn,omitempty"`
	Unit         string           `json:"unit,omitempty"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	UnitNetPrice *decimal.Decimal `json:"unit_net_price,omitempty"`
	Net          decimal.Decimal  `json:"net"`
	VATRate      string           `json:"vat_rate"`
}

// Annotations holds the Adnotacje flags as raw schema values
type Annotations struct {
	CashMethod      string `json:"cash_method,omitempty"`
	SelfBilling     string `json:"self_billing,omitempty"`
	ReverseCharge   string `json:"reverse_charge,omitempty"`
	SplitPayment    string `json:"split_payment,omitempty"`
	MarginProcedure string `json:"margin_procedure,omitempty"`
}

// Reconciliation is the Rozliczenie block
type Reconciliation struct {
	Charges    []Adjustment     `json:"charges,omitempty"`
	Deductions []Adjustment     `json:"deductions,omitempty"`
	AmountDue  *decimal.Decimal `json:"amount_due,omitempty"`
}

// Adjustment is a single charge or deduction
type Adjustment struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

// Payment is the Platnosc block
type Payment struct {
	DueDates       []DueDate     `json:"due_dates,omitempty"`
	Method         string        `json:"method,omitempty"`
	Paid           bool          `json:"paid,omitempty"`
	PaidDate       *time.Time    `json:"paid_date,omitempty"`
	Accounts       []BankAccount `json:"accounts,omitempty"`
	FactorAccounts []BankAccount `json:"factor_accounts,omitempty"`
}

// DueDate is either a calendar date or a relative description
type DueDate struct {
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
}

// String renders the due date for display
func (d DueDate) String() string {
	if d.Date != nil {
		return d.Date.Format("2006-01-02")
	}
	return d.Description
}

// BankAccount is a RachunekBankowy entry
type BankAccount struct {
	Number      string `json:"number"`
	SWIFT       string `json:"swift,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Footer is the Stopka block
type Footer struct {
	Text  []string `json:"text,omitempty"`
	KRS   string   `json:"krs,omitempty"`
	REGON string   `json:"regon,omitempty"`
	BDO   string   `json:"bdo,omitempty"`
}
