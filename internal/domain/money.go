package domain

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every amount.
const MoneyScale = 2

// MaxAmount is the largest value a NUMERIC(15,2) column holds. It bounds
// request amounts and every stored balance.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

var (
	errAmountTooLarge    = errors.New("amount must not exceed 9999999999999.99")
	errAmountNotPositive = errors.New("amount must be greater than zero")
	errAmountPrecision   = errors.New("amount must have at most two decimal places")
	errAmountNegative    = errors.New("amount must not be negative")

	accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)
	pinPattern           = regexp.MustCompile(`^[0-9]{4}$`)
)

// ValidatePositiveAmount accepts amounts in (0, MaxAmount] with at most two
// decimal places.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errAmountNotPositive
	}
	if amount.GreaterThan(MaxAmount) {
		return errAmountTooLarge
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return errAmountPrecision
	}
	return nil
}

// ValidateOptionalAmount accepts nil or amounts >= 0, up to MaxAmount, with at most two decimal places.
func ValidateOptionalAmount(amount *decimal.Decimal) error {
	if amount == nil {
		return nil
	}
	if amount.IsNegative() {
		return errAmountNegative
	}
	if amount.GreaterThan(MaxAmount) {
		return errAmountTooLarge
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return errAmountPrecision
	}
	return nil
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyScale)
}

// IsAccountNumber reports whether s is exactly ten ASCII digits.
func IsAccountNumber(s string) bool {
	return accountNumberPattern.MatchString(s)
}

// IsTransactionPIN reports whether s is exactly four ASCII digits.
func IsTransactionPIN(s string) bool {
	return pinPattern.MatchString(s)
}

// MaskAccountNumber keeps only the last four digits, for logs and listings.
func MaskAccountNumber(accountNumber string) string {
	if len(accountNumber) != 10 {
		return accountNumber
	}
	return "******" + accountNumber[6:]
}
