package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dompet/internal/core"
	"dompet/internal/storage"

	"github.com/google/uuid"
)

// ErrTransferLeg is returned when a transfer leg is edited on its own.
var ErrTransferLeg = errors.New("transfer legs change only through their top-up")

// TransactionPublisher announces ledger changes.
type TransactionPublisher interface {
	PublishTransaction(ctx context.Context, action string, t core.Transaction) error
}

// Transaction event actions, mirrored by the AMQP messages.
const (
	actionRecorded = "recorded"
	actionEdited   = "edited"
	actionDeleted  = "deleted"
)

// LedgerService records transactions and keeps payment method balances and
// budget usage in step with them. Every operation commits as one SQL transaction.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	categories *CategoryService
	publisher  TransactionPublisher
}

func NewLedgerService(storage *storage.SQLiteRepository, categories *CategoryService, publisher TransactionPublisher) *LedgerService {
	return &LedgerService{storage: storage, categories: categories, publisher: publisher}
}

// AddPaymentMethod stores a new payment method. Only one cash method may exist.
// An e-wallet also gets its hidden top-up categories.
func (s *LedgerService) AddPaymentMethod(ctx context.Context, p core.PaymentMethod, now time.Time) (core.PaymentMethod, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Color != "" && !strings.HasPrefix(p.Color, "#") {
		p.Color = "#" + p.Color
	}
	if err := p.Validate(); err != nil {
		return core.PaymentMethod{}, err
	}

	if err := s.storage.InsertPaymentMethod(ctx, p); err != nil {
		return core.PaymentMethod{}, err
	}
	slog.InfoContext(ctx, "Payment method added",
		"payment_method_id", p.ID,
		"kind", p.Kind,
		"tracks_balance", p.TracksBalance)

	if p.Kind == core.EWallet && s.categories != nil {
		if _, err := s.categories.EnsureTopUpCategories(ctx, p, now); err != nil {
			return p, fmt.Errorf("create top-up categories: %w", err)
		}
	}
	return p, nil
}

// RecordTransaction stores a category transaction, applies it to the payment
// method balance and charges the budget line of its window.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, ok := t.Entry.(core.CategoryEntry); !ok {
		return core.Transaction{}, ErrTransferLeg
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if t, err = linkBudgetLine(ctx, q, t); err != nil {
			return err
		}
		if err := q.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := applyEffects(ctx, q, t, false); err != nil {
			return err
		}
		categoryID, _ := t.CategoryID()
		return q.TouchCategory(ctx, categoryID, t.Date)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"transaction_id", t.ID,
		"amount", t.Amount.String(),
		"date", t.Date.Format(time.DateOnly))
	s.publish(ctx, actionRecorded, t)
	return t, nil
}

// EditTransaction replaces a category transaction, reverting the effects of
// the stored version before applying the new ones.
func (s *LedgerService) EditTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if _, ok := t.Entry.(core.CategoryEntry); !ok {
		return core.Transaction{}, ErrTransferLeg
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		if _, ok := old.Entry.(core.TransferLeg); ok {
			return ErrTransferLeg
		}
		if err := applyEffects(ctx, q, old, true); err != nil {
			return err
		}
		if t, err = linkBudgetLine(ctx, q, t); err != nil {
			return err
		}
		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if err := applyEffects(ctx, q, t, false); err != nil {
			return err
		}
		categoryID, _ := t.CategoryID()
		return q.TouchCategory(ctx, categoryID, t.Date)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("edit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction edited", "transaction_id", t.ID)
	s.publish(ctx, actionEdited, t)
	return t, nil
}

// DeleteTransaction reverts and removes a transaction. Deleting either leg of a
// top-up removes the whole transfer.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	var removed []core.Transaction
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		removed, err = removeTransaction(ctx, q, t)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	for _, t := range removed {
		slog.InfoContext(ctx, "Transaction deleted", "transaction_id", t.ID)
		s.publish(ctx, actionDeleted, t)
	}
	return nil
}

// RecordTopUp moves amount from one payment method to another as a pair of
// linked transfer legs.
func (s *LedgerService) RecordTopUp(ctx context.Context, sourceMethod, targetMethod uuid.UUID, amount core.Money, date time.Time, note string) (core.TopUp, error) {
	if sourceMethod == targetMethod {
		return core.TopUp{}, fmt.Errorf("top-up source and target must differ")
	}
	top := core.TopUp{ID: uuid.New(), SourceID: uuid.New(), TargetID: uuid.New()}
	legs := []core.Transaction{
		{
			ID:              top.SourceID,
			Amount:          amount,
			PaymentMethodID: sourceMethod,
			Date:            date,
			Note:            note,
			Entry:           core.TransferLeg{TopUpID: top.ID, Direction: core.TransferOut},
		},
		{
			ID:              top.TargetID,
			Amount:          amount,
			PaymentMethodID: targetMethod,
			Date:            date,
			Note:            note,
			Entry:           core.TransferLeg{TopUpID: top.ID, Direction: core.TransferIn},
		},
	}
	for _, l := range legs {
		if err := l.Validate(); err != nil {
			return core.TopUp{}, err
		}
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if err := q.InsertTopUp(ctx, top); err != nil {
			return err
		}
		for _, l := range legs {
			if err := q.InsertTransaction(ctx, l); err != nil {
				return err
			}
			if err := applyEffects(ctx, q, l, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.TopUp{}, fmt.Errorf("record top-up: %w", err)
	}

	slog.InfoContext(ctx, "Top-up recorded",
		"top_up_id", top.ID,
		"amount", amount.String())
	for _, l := range legs {
		s.publish(ctx, actionRecorded, l)
	}
	return top, nil
}

// Transactions lists the transactions dated within w.
func (s *LedgerService) Transactions(ctx context.Context, w core.Window) ([]core.Transaction, error) {
	return s.storage.ListTransactionsBetween(ctx, w.Start, w.End)
}

func (s *LedgerService) publish(ctx context.Context, action string, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransaction(ctx, action, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID,
			"action", action,
			"error", err)
	}
}
