// Package core provides the domain types of the budget tracker.
//
// This file contains the money value type and the currency display policy used to
// format amounts for people and to parse what they typed back into a number.
package core

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Currency describes how amounts of one currency are displayed.
type Currency struct {
	Code              string
	Sign              string
	DecimalPlaces     int32
	DecimalSeparator  string
	GroupingSeparator string
}

// IDR is the Indonesian rupiah, the only currency known without configuration.
var IDR = Currency{
	Code:              "IDR",
	Sign:              "Rp",
	DecimalPlaces:     0,
	DecimalSeparator:  ",",
	GroupingSeparator: ".",
}

var (
	currenciesMu sync.RWMutex
	currencies   = map[string]Currency{IDR.Code: IDR}
)

// LookupCurrency returns the registered display policy for a currency code.
func LookupCurrency(code string) (Currency, error) {
	currenciesMu.RLock()
	defer currenciesMu.RUnlock()
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// RegisterCurrency adds or replaces a currency in the lookup table.
func RegisterCurrency(c Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Code = strings.ToUpper(c.Code)
	currenciesMu.Lock()
	currencies[c.Code] = c
	currenciesMu.Unlock()
	return nil
}

// CurrencySign returns the display sign for a code, or "" when the code is unknown.
func CurrencySign(code string) string {
	c, err := LookupCurrency(code)
	if err != nil {
		return ""
	}
	return c.Sign
}

// Validate checks the display policy is usable for both Format and Parse.
func (c Currency) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidCurrency)
	}
	if c.DecimalPlaces < 0 {
		return fmt.Errorf("%w: negative decimal places", ErrInvalidCurrency)
	}
	if utf8.RuneCountInString(c.DecimalSeparator) != 1 || utf8.RuneCountInString(c.GroupingSeparator) != 1 {
		return fmt.Errorf("%w: separators must be single characters", ErrInvalidCurrency)
	}
	if c.DecimalSeparator == c.GroupingSeparator {
		return fmt.Errorf("%w: decimal and grouping separators must differ", ErrInvalidCurrency)
	}
	return nil
}

// Format renders an amount, e.g. "Rp 1.234.567".
//
// The amount is truncated (not rounded) to DecimalPlaces and trailing fractional
// zeros are dropped.
func (c Currency) Format(amount decimal.Decimal) string {
	t := amount.Truncate(c.DecimalPlaces)
	negative := t.IsNegative()
	digits := t.Abs().StringFixed(c.DecimalPlaces)

	intPart, fracPart, _ := strings.Cut(digits, ".")
	fracPart = strings.TrimRight(fracPart, "0")

	var b strings.Builder
	if c.Sign != "" {
		b.WriteString(c.Sign)
		b.WriteByte(' ')
	}
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(groupDigits(intPart, c.GroupingSeparator))
	if fracPart != "" {
		b.WriteString(c.DecimalSeparator)
		b.WriteString(fracPart)
	}
	return b.String()
}

// Parse reads a display string back into an amount.
//
// The sign, grouping separators and whitespace are removed and the decimal separator
// is read as the decimal point. An empty residue is zero.
func (c Currency) Parse(s string) (decimal.Decimal, error) {
	residue := s
	if c.Sign != "" {
		residue = strings.ReplaceAll(residue, c.Sign, "")
	}
	if c.GroupingSeparator != "" {
		residue = strings.ReplaceAll(residue, c.GroupingSeparator, "")
	}
	if c.DecimalSeparator != "" && c.DecimalSeparator != "." {
		residue = strings.ReplaceAll(residue, c.DecimalSeparator, ".")
	}
	residue = strings.Join(strings.Fields(residue), "")
	if residue == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(residue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

func groupDigits(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Money is an amount tagged with its currency. Values are never modified in place.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney builds a Money value.
func NewMoney(amount decimal.Decimal, c Currency) Money {
	return Money{Amount: amount, Currency: c}
}

// Zero returns zero in the given currency.
func Zero(c Currency) Money {
	return Money{Amount: decimal.Zero, Currency: c}
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency.Code != o.Currency.Code {
		return fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency.Code, o.Currency.Code)
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Cmp compares two amounts of the same currency.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(o.Amount), nil
}

// Equal reports whether both values have the same currency and amount.
func (m Money) Equal(o Money) bool {
	return m.Currency.Code == o.Currency.Code && m.Amount.Equal(o.Amount)
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Format renders the amount with its currency's display policy.
func (m Money) Format() string {
	return m.Currency.Format(m.Amount)
}

func (m Money) String() string {
	return m.Format()
}

// Validate requires a currency code and a positive amount. The code need not be
// registered: amounts read back with an unregistered code stay valid.
func (m Money) Validate() error {
	if strings.TrimSpace(m.Currency.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidCurrency)
	}
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
