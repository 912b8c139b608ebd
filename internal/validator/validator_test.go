package validator_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ksef-pdf/internal/model"
	"github.com/rezonia/ksef-pdf/internal/validator"
)

const (
	sellerNIP  = "5265877635"
	buyerNIP   = "1234563218"
	onlineKSeF = "5265877635-20250826-0100001AF629-AF"
)

func party(nip, name string) *model.Party {
	return &model.Party{
		Identification: &model.Identification{TaxID: nip, Name: name},
		Address:        &model.Address{CountryCode: "PL", Line1: "ul. Prosta 1", Line2: "00-001 Warszawa"},
	}
}

func validInvoice() *model.Invoice {
	return &model.Invoice{
		Header: &model.Header{
			FormCode:  validator.DefaultForm,
			Namespace: validator.NamespaceFA3,
			CreatedAt: time.Date(2025, 8, 26, 10, 0, 0, 0, time.UTC),
		},
		Seller: party(sellerNIP, "ABC Sp. z o.o."),
		Buyer:  party(buyerNIP, "XYZ S.A."),
		Body: &model.Body{
			Currency:  "PLN",
			Number:    "FV/1/2025",
			Type:      model.InvoiceTypeVAT,
			IssueDate: time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC),
			Subtotals: []model.Subtotal{
				{Bucket: "1", Net: decimal.RequireFromString("150.00"), VAT: decimal.RequireFromString("34.50")},
			},
			Gross: decimal.RequireFromString("184.50"),
			Lines: []model.LineItem{
				{Row: 1, Description: "Consulting", Net: decimal.RequireFromString("100.00"), VATRate: "23"},
				{Row: 2, Description: "Travel", Net: decimal.RequireFromString("50.00"), VATRate: "23"},
			},
		},
	}
}

func TestValidNIP(t *testing.T) {
	tests := []struct {
		nip   string
		valid bool
	}{
		{"5265877635", true},
		{"1234563218", true},
		{"5261040828", true},
		{"1234567890", false}, // weighted sum reduces to 10
		{"123456321", false},
		{"12345632180", false},
		{"12345632 8", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.nip, func(t *testing.T) {
			assert.Equal(t, tt.valid, validator.ValidNIP(tt.nip))
		})
	}
}

func TestValidNIP_CheckDigitMutations(t *testing.T) {
	for _, nip := range []string{"5265877635", "1234563218", "5261040828"} {
		require.True(t, validator.ValidNIP(nip))
		for d := byte('0'); d <= '9'; d++ {
			if d == nip[9] {
				continue
			}
			mutated := nip[:9] + string(d)
			assert.False(t, validator.ValidNIP(mutated), mutated)
		}
	}
}

func TestValidate_ValidInvoice(t *testing.T) {
	out := validator.New().Validate(validInvoice())
	assert.True(t, out.Valid, out.Errors)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Warnings)
}

func TestValidate_NilInvoice(t *testing.T) {
	out := validator.New().Validate(nil)
	assert.False(t, out.Valid)
	assert.NotEmpty(t, out.Errors)
}

func TestValidate_NoLineItems(t *testing.T) {
	inv := validInvoice()
	inv.Body.Lines = nil

	out := validator.New().Validate(inv)
	assert.False(t, out.Valid)
	assert.True(t, containsText(out.Errors, "line items"), out.Errors)
}

func TestValidate_AllRulesRun(t *testing.T) {
	inv := validInvoice()
	inv.Header = nil
	inv.Buyer.Identification.TaxID = ""
	inv.Body.Currency = ""
	inv.Body.Lines[0].VATRate = ""

	out := validator.New().Validate(inv)
	assert.False(t, out.Valid)
	assert.True(t, containsText(out.Errors, "header"))
	assert.True(t, containsText(out.Errors, "buyer: tax ID is missing"))
	assert.True(t, containsText(out.Errors, "currency"))
	assert.True(t, containsText(out.Errors, "line item 1: VAT rate"))
}

func TestValidate_Header(t *testing.T) {
	t.Run("wrong form code", func(t *testing.T) {
		inv := validInvoice()
		inv.Header.FormCode.SystemCode = "FA (2)"
		inv.Header.FormCode.Variant = 2
		out := validator.New().Validate(inv)
		assert.False(t, out.Valid)
		assert.True(t, containsText(out.Errors, "FA (2)"))
	})

	t.Run("schema version is a warning", func(t *testing.T) {
		inv := validInvoice()
		inv.Header.FormCode.SchemaVersion = "1-0"
		out := validator.New().Validate(inv)
		assert.True(t, out.Valid)
		assert.True(t, containsText(out.Warnings, "schema version"))
	})

	t.Run("unknown namespace", func(t *testing.T) {
		inv := validInvoice()
		inv.Header.Namespace = "http://example.com/fa"
		out := validator.New().Validate(inv)
		assert.False(t, out.Valid)
		assert.True(t, containsText(out.Errors, "namespace"))
	})

	t.Run("custom expected form", func(t *testing.T) {
		inv := validInvoice()
		inv.Header.FormCode = model.FormCode{Value: "FA", SystemCode: "FA (2)", SchemaVersion: "1-0E", Variant: 2}
		inv.Header.Namespace = validator.NamespaceFA2
		v := validator.New(validator.WithExpectedForm(inv.Header.FormCode))
		assert.True(t, v.Validate(inv).Valid)

		v = validator.New(validator.WithExpectedForm(inv.Header.FormCode), validator.WithNamespaces(validator.NamespaceFA3))
		assert.False(t, v.Validate(inv).Valid)
	})
}

func TestValidate_Parties(t *testing.T) {
	t.Run("bad NIP", func(t *testing.T) {
		inv := validInvoice()
		inv.Seller.Identification.TaxID = "5265877636"
		out := validator.New().Validate(inv)
		assert.False(t, out.Valid)
		assert.True(t, containsText(out.Errors, "seller: tax ID"))
	})

	t.Run("missing identification", func(t *testing.T) {
		inv := validInvoice()
		inv.Buyer.Identification = nil
		out := validator.New().Validate(inv)
		assert.True(t, containsText(out.Errors, "buyer: identification"))
	})

	t.Run("missing address lines", func(t *testing.T) {
		inv := validInvoice()
		inv.Seller.Address.Line2 = ""
		out := validator.New().Validate(inv)
		assert.False(t, out.Valid)
		assert.True(t, containsText(out.Errors, "address line 2"))
	})

	t.Run("country code length is a warning", func(t *testing.T) {
		inv := validInvoice()
		inv.Buyer.Address.CountryCode = "POL"
		out := validator.New().Validate(inv)
		assert.True(t, out.Valid)
		assert.True(t, containsText(out.Warnings, "country code"))
	})

	t.Run("third party share", func(t *testing.T) {
		inv := validInvoice()
		share := decimal.NewFromInt(120)
		inv.ThirdParties = []model.ThirdParty{{Party: *party("5261040828", "Factor"), Role: "1", Share: &share}}
		out := validator.New().Validate(inv)
		assert.True(t, out.Valid)
		assert.True(t, containsText(out.Warnings, "third party 1: share"))
	})
}

func TestValidate_NetTolerance(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		gross    string
		warns    bool
	}{
		{"exact", "150.00", "184.50", false},
		{"exactly one cent", "150.01", "184.51", false},
		{"one cent below", "149.99", "184.49", false},
		{"over one cent", "150.02", "184.52", true},
		{"fraction over", "150.011", "184.511", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			inv.Body.Subtotals[0].Net = decimal.RequireFromString(tt.subtotal)
			inv.Body.Gross = decimal.RequireFromString(tt.gross)

			out := validator.New().Validate(inv)
			assert.True(t, out.Valid)
			assert.Equal(t, tt.warns, containsText(out.Warnings, "sum of line item net values"), out.Warnings)
			assert.False(t, containsText(out.Warnings, "gross total"), out.Warnings)
		})
	}
}

func TestValidate_NetComparedAcrossRates(t *testing.T) {
	inv := validInvoice()
	inv.Body.Lines[1].VATRate = "8"
	inv.Body.Subtotals = []model.Subtotal{
		{Bucket: "1", Net: decimal.RequireFromString("100.00"), VAT: decimal.RequireFromString("23.00")},
		{Bucket: "2", Net: decimal.RequireFromString("50.00"), VAT: decimal.RequireFromString("4.00")},
	}
	inv.Body.Gross = decimal.RequireFromString("177.00")

	out := validator.New().Validate(inv)
	assert.True(t, out.Valid, out.Errors)
	assert.Empty(t, out.Warnings)

	inv.Body.Subtotals[1].Net = decimal.RequireFromString("60.00")
	inv.Body.Gross = decimal.RequireFromString("187.00")
	out = validator.New().Validate(inv)
	assert.True(t, containsText(out.Warnings, "net subtotal across all rates 160.00"), out.Warnings)
}

func TestValidate_GrossMismatch(t *testing.T) {
	inv := validInvoice()
	inv.Body.Gross = decimal.RequireFromString("190.00")

	out := validator.New().Validate(inv)
	assert.True(t, out.Valid)
	assert.True(t, containsText(out.Warnings, "gross total"))
}

func TestValidate_Reconciliation(t *testing.T) {
	inv := validInvoice()
	due := decimal.RequireFromString("194.50")
	inv.Body.Reconciliation = &model.Reconciliation{
		Charges:    []model.Adjustment{{Amount: decimal.NewFromInt(20), Reason: "shipping"}},
		Deductions: []model.Adjustment{{Amount: decimal.NewFromInt(10), Reason: "discount"}},
		AmountDue:  &due,
	}
	out := validator.New().Validate(inv)
	assert.Empty(t, out.Warnings)

	wrong := decimal.RequireFromString("184.50")
	inv.Body.Reconciliation.AmountDue = &wrong
	out = validator.New().Validate(inv)
	assert.True(t, out.Valid)
	assert.True(t, containsText(out.Warnings, "amount due"))
}

func TestValidate_Payment(t *testing.T) {
	inv := validInvoice()
	inv.Body.Payment = &model.Payment{
		Method:   "9",
		DueDates: []model.DueDate{{}},
	}

	out := validator.New().Validate(inv)
	assert.False(t, out.Valid)
	assert.True(t, containsText(out.Errors, "payment method"))
	assert.True(t, containsText(out.Warnings, "due date 1"))

	inv.Body.Payment.Method = model.PaymentTransfer
	inv.Body.Payment.DueDates = []model.DueDate{{Description: "14 days"}}
	out = validator.New().Validate(inv)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Warnings)
}

func TestValidateContext_Issuance(t *testing.T) {
	now := time.Date(2025, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		meta      model.IssuanceMetadata
		seller    string
		valid     bool
		errorText string
		warnText  string
	}{
		{"offline", model.IssuanceMetadata{Mode: model.IssuanceOffline}, sellerNIP, true, "", ""},
		{"online ok", model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: onlineKSeF}, sellerNIP, true, "", ""},
		{"online without number", model.IssuanceMetadata{Mode: model.IssuanceOnline}, sellerNIP, false, "no KSeF number", ""},
		{"online bad checksum", model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: onlineKSeF[:33] + "00"}, sellerNIP, false, "checksum", ""},
		{"online NIP mismatch", model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: onlineKSeF}, "5261040828", true, "", "does not match seller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			inv.Seller.Identification.TaxID = tt.seller
			ic := model.NewInvoiceContext(inv, tt.meta, []byte("<Faktura/>"), now)

			out := validator.New().ValidateContext(ic)
			assert.Equal(t, tt.valid, out.Valid, out.Errors)
			if tt.errorText != "" {
				assert.True(t, containsText(out.Errors, tt.errorText), out.Errors)
			}
			if tt.warnText != "" {
				assert.True(t, containsText(out.Warnings, tt.warnText), out.Warnings)
			}
		})
	}
}

func TestValidateContext_Nil(t *testing.T) {
	out := validator.New().ValidateContext(nil)
	assert.False(t, out.Valid)
}

func TestValidateContext_NilInvoiceOnline(t *testing.T) {
	meta := model.IssuanceMetadata{Mode: model.IssuanceOnline, KSeFNumber: onlineKSeF}
	ic := model.NewInvoiceContext(nil, meta, nil, time.Date(2025, 8, 26, 12, 0, 0, 0, time.UTC))

	var out *validator.Outcome
	require.NotPanics(t, func() { out = validator.New().ValidateContext(ic) })
	assert.False(t, out.Valid)
	assert.True(t, containsText(out.Errors, "invoice is missing"), out.Errors)
}

func TestValidate_ThirdPartyShare(t *testing.T) {
	for _, share := range []string{"-1", "100.5"} {
		inv := validInvoice()
		s := decimal.RequireFromString(share)
		inv.ThirdParties = []model.ThirdParty{{Party: *inv.Buyer, Share: &s}}

		out := validator.New().Validate(inv)
		assert.True(t, containsText(out.Warnings, "outside 0..100"), share)
	}

	inv := validInvoice()
	zero := decimal.Zero
	inv.ThirdParties = []model.ThirdParty{{Party: *inv.Buyer, Share: &zero}}
	assert.False(t, containsText(validator.New().Validate(inv).Warnings, "outside 0..100"))
}

func TestOutcome_Merge(t *testing.T) {
	a := validator.NewOutcome()
	a.AddWarning("w1")

	b := validator.NewOutcome()
	b.AddError("e1")
	b.AddWarning("w2")

	a.Merge(b)
	assert.False(t, a.Valid)
	assert.Equal(t, []string{"e1"}, a.Errors)
	assert.Equal(t, []string{"w1", "w2"}, a.Warnings)
}

func containsText(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
