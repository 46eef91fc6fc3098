package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Expense CategoryKind = "expense"
	Income  CategoryKind = "income"
)

const (
	Cash       MethodKind = "cash"
	DebitCard  MethodKind = "debit_card"
	CreditCard MethodKind = "credit_card"
	EWallet    MethodKind = "e_wallet"
)

const (
	TransferOut LegDirection = "out"
	TransferIn  LegDirection = "in"
)

type (
	CategoryKind string
	MethodKind   string
	LegDirection string

	// Icon is either a named symbol or a literal text glyph, never both.
	Icon struct {
		symbol string
		text   string
	}

	Category struct {
		ID           uuid.UUID
		Name         string
		Kind         CategoryKind
		Icon         Icon
		Color        string
		LighterColor string
		Hidden       bool // system-generated categories such as top-up pairs
		CreatedAt    time.Time
		LastUsedAt   time.Time
	}

	PaymentMethod struct {
		ID               uuid.UUID
		Name             string
		Kind             MethodKind
		Balance          Money
		TracksBalance    bool
		IdentifierNumber string // last 4 digits or blank
		Color            string
	}

	// Entry says what a transaction is booked against. It is either a
	// CategoryEntry or a TransferLeg.
	Entry interface {
		isEntry()
	}

	CategoryEntry struct {
		CategoryID   uuid.UUID
		BudgetLineID uuid.UUID // uuid.Nil when not charged to a budget
	}

	TransferLeg struct {
		TopUpID   uuid.UUID
		Direction LegDirection
	}

	Transaction struct {
		ID              uuid.UUID
		Amount          Money
		PaymentMethodID uuid.UUID
		Date            time.Time
		Note            string
		Entry           Entry
	}

	// TopUp pairs the two legs of a transfer between payment methods.
	TopUp struct {
		ID       uuid.UUID
		SourceID uuid.UUID // transaction leaving the source method
		TargetID uuid.UUID // transaction arriving at the target method
	}

	PeriodicBudget struct {
		ID        uuid.UUID
		Kind      PeriodKind
		StartDate time.Time
		EndDate   time.Time
	}

	BudgetLine struct {
		ID               uuid.UUID
		PeriodicBudgetID uuid.UUID
		CategoryID       uuid.UUID
		Limit            Money
		Used             Money
		Order            int
	}
)

func (CategoryEntry) isEntry() {}
func (TransferLeg) isEntry()   {}

// SymbolIcon references an icon by name.
func SymbolIcon(name string) Icon { return Icon{symbol: strings.TrimSpace(name)} }

// TextIcon uses a literal glyph such as an emoji.
func TextIcon(glyph string) Icon { return Icon{text: strings.TrimSpace(glyph)} }

func (i Icon) Symbol() (string, bool) { return i.symbol, i.symbol != "" }
func (i Icon) Text() (string, bool)   { return i.text, i.text != "" }

func (i Icon) Validate() error {
	if (i.symbol == "") == (i.text == "") {
		return ErrInvalidIcon
	}
	return nil
}

func (k CategoryKind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategoryKind, k)
}

func (k MethodKind) Validate() error {
	switch k {
	case Cash, DebitCard, CreditCard, EWallet:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMethodKind, k)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return fmt.Errorf("category name too long (max 100 characters)")
	}
	if err := c.Kind.Validate(); err != nil {
		return err
	}
	return c.Icon.Validate()
}

func (p PaymentMethod) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if err := p.Kind.Validate(); err != nil {
		return err
	}
	if id := p.IdentifierNumber; id != "" {
		if len(id) != 4 {
			return ErrInvalidIdentifier
		}
		if _, err := strconv.Atoi(id); err != nil {
			return ErrInvalidIdentifier
		}
	}
	if p.TracksBalance && strings.TrimSpace(p.Balance.Currency.Code) == "" {
		return fmt.Errorf("%w: balance without currency", ErrInvalidCurrency)
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.PaymentMethodID == uuid.Nil {
		return fmt.Errorf("%w: payment method", ErrMissingID)
	}
	if len(t.Note) > 500 {
		return fmt.Errorf("note too long (max 500 characters)")
	}
	switch e := t.Entry.(type) {
	case CategoryEntry:
		if e.CategoryID == uuid.Nil {
			return fmt.Errorf("%w: category", ErrMissingID)
		}
	case TransferLeg:
		if e.TopUpID == uuid.Nil {
			return fmt.Errorf("%w: top-up", ErrMissingID)
		}
		if e.Direction != TransferOut && e.Direction != TransferIn {
			return fmt.Errorf("invalid transfer direction %q", e.Direction)
		}
	default:
		return ErrMissingEntry
	}
	return nil
}

// CategoryID returns the category of a category transaction.
func (t Transaction) CategoryID() (uuid.UUID, bool) {
	e, ok := t.Entry.(CategoryEntry)
	return e.CategoryID, ok
}

// BalanceDelta is the signed change a transaction makes to its payment method's
// balance. kind is the category kind and is ignored for transfer legs.
func (t Transaction) BalanceDelta(kind CategoryKind) Money {
	switch e := t.Entry.(type) {
	case CategoryEntry:
		if kind == Income {
			return t.Amount
		}
		return t.Amount.Neg()
	case TransferLeg:
		if e.Direction == TransferIn {
			return t.Amount
		}
		return t.Amount.Neg()
	}
	return Zero(t.Amount.Currency)
}

// Window returns the budget's inclusive time span.
func (b PeriodicBudget) Window() Window {
	return Window{Start: b.StartDate, End: b.EndDate}
}

func (b PeriodicBudget) Validate() error {
	if err := b.Kind.Validate(); err != nil {
		return err
	}
	return b.Window().Validate()
}

func (l BudgetLine) Validate() error {
	if l.CategoryID == uuid.Nil {
		return fmt.Errorf("%w: category", ErrMissingID)
	}
	if err := l.Limit.Validate(); err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	if l.Used.IsNegative() {
		return fmt.Errorf("used amount: %w", ErrInvalidAmount)
	}
	if l.Order < 0 {
		return fmt.Errorf("order must not be negative")
	}
	return nil
}

// Remaining returns Limit - Used.
func (l BudgetLine) Remaining() (Money, error) {
	return l.Limit.Sub(l.Used)
}

// CarryForward returns the line for the next window: same category, limit and
// order, nothing used yet.
func (l BudgetLine) CarryForward(budgetID uuid.UUID) BudgetLine {
	return BudgetLine{
		ID:               uuid.New(),
		PeriodicBudgetID: budgetID,
		CategoryID:       l.CategoryID,
		Limit:            l.Limit,
		Used:             Zero(l.Limit.Currency),
		Order:            l.Order,
	}
}
