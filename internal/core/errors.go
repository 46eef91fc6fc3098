package core

import "errors"

// Money errors.
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Record validation errors.
var (
	ErrEmptyName           = errors.New("empty name")
	ErrInvalidCategoryKind = errors.New("invalid category kind")
	ErrInvalidIcon         = errors.New("icon must be either a symbol or a text glyph")
	ErrInvalidMethodKind   = errors.New("invalid payment method kind")
	ErrInvalidIdentifier   = errors.New("identifier number must be blank or 4 digits")
	ErrMissingEntry        = errors.New("transaction has neither category nor transfer leg")
	ErrMissingID           = errors.New("missing id")
	ErrInvalidWindow       = errors.New("window end must not be before start")
)

// Period errors.
var (
	ErrUnknownPeriodKind = errors.New("unknown period kind")
	ErrNoProgress        = errors.New("rollover made no progress")
)

// Storage errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrCashMethodExists = errors.New("a cash payment method already exists")
	ErrWindowExists     = errors.New("budget window already exists")
	ErrBudgetExists     = errors.New("budget already exists")
	ErrCategoryInUse    = errors.New("category has dependent records")
)
