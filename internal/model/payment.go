package model

// Payment method codes (FormaPlatnosci)
const (
	PaymentCash     = "1"
	PaymentCard     = "2"
	PaymentVoucher  = "3"
	PaymentCheque   = "4"
	PaymentCredit   = "5"
	PaymentTransfer = "6"
	PaymentMobile   = "7"
	PaymentOther    = "8"
)

var paymentMethods = map[string]string{
	PaymentCash:     "cash",
	PaymentCard:     "card",
	PaymentVoucher:  "voucher",
	PaymentCheque:   "cheque",
	PaymentCredit:   "credit",
	PaymentTransfer: "bank transfer",
	PaymentMobile:   "mobile payment",
	PaymentOther:    "other",
}

// IsKnownPaymentMethod reports whether code belongs to the payment method table
func IsKnownPaymentMethod(code string) bool {
	_, ok := paymentMethods[code]
	return ok
}

// PaymentMethodDescription returns the display text for a payment method code,
// or "unknown" for codes outside the table
func PaymentMethodDescription(code string) string {
	if d, ok := paymentMethods[code]; ok {
		return d
	}
	return "unknown"
}
