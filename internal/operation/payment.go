package operation

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusPaid marks a payment as settled.
const StatusPaid = "paid"

// Payment records a payment attempt and its status.
type Payment struct {
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// PaymentStatus reduces payment records into whether any was ever paid.
var PaymentStatus = Contract[Payment, bool]{
	Kind:   "payment_status",
	Zero:   func() bool { return false },
	Legacy: ParsePayment,
}

// Apply implements Operation. Once paid, always paid.
func (p Payment) Apply(paid bool) bool {
	return paid || p.Status == StatusPaid
}

// ParsePayment parses the "amount,status" form.
func ParsePayment(s string) (Payment, error) {
	amount, status, ok := strings.Cut(s, ",")
	if !ok {
		return Payment{}, fmt.Errorf("invalid payment %q: want amount,status", s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
	if err != nil {
		return Payment{}, fmt.Errorf("invalid payment amount %q: %w", amount, err)
	}
	return Payment{Amount: n, Status: strings.TrimSpace(status)}, nil
}

// String renders the "amount,status" form.
func (p Payment) String() string {
	return fmt.Sprintf("%d,%s", p.Amount, p.Status)
}
