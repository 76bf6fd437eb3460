package bankwest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shape is a kind of page the bank can respond with.
type Shape int

const (
	ShapeLogin Shape = iota
	ShapeLogout
	ShapeAccounts
	ShapeTransactionSearch
	ShapeTransactionExport
)

func (s Shape) String() string {
	switch s {
	case ShapeLogin:
		return "login"
	case ShapeLogout:
		return "logout"
	case ShapeAccounts:
		return "accounts"
	case ShapeTransactionSearch:
		return "transaction-search"
	case ShapeTransactionExport:
		return "transaction-export"
	}
	return "unknown"
}

// Account is a row of the account summary, in the order the user has
// arranged their accounts in the web ui.
type Account struct {
	Name string
	// Number is the account reference in `BBB-BBB AAAAAAA` form.
	Number    string
	Balance   decimal.Decimal
	Available decimal.Decimal
}

type Transaction struct {
	Bsb           string
	AccountNumber string
	Date          time.Time
	Narrative     string
	ChequeNumber  string
	// Amount is positive for credits and negative for debits.
	Amount  decimal.Decimal
	Balance decimal.Decimal
	Type    string
}
