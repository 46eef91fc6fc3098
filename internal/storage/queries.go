package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dompet/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the SQL for every entity. Times are stored as unix seconds and
// read back in loc.
type Queries struct {
	db  DBTX
	loc *time.Location
}

func New(db DBTX, loc *time.Location) *Queries {
	if loc == nil {
		loc = time.UTC
	}
	return &Queries{db: db, loc: loc}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, loc: q.loc}
}

// Location is the zone times are returned in.
func (q *Queries) Location() *time.Location {
	return q.loc
}

type scanner interface {
	Scan(dest ...any) error
}

func (q *Queries) fromUnix(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).In(q.loc)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// currencyFor resolves a stored code to its display policy. Codes missing from the
// table still load, with a plain two-decimal policy and no sign.
func currencyFor(code string) core.Currency {
	c, err := core.LookupCurrency(code)
	if err != nil {
		return core.Currency{Code: code, DecimalPlaces: 2, DecimalSeparator: ".", GroupingSeparator: ","}
	}
	return c
}

func money(amount, code string) (core.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Money{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	return core.NewMoney(d, currencyFor(code)), nil
}

func nullID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullID(s sql.NullString) (uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s.String)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}

// Categories

const categoryColumns = `id, name, kind, icon_symbol, icon_text, color, lighter_color, hidden, created_at, last_used_at`

func (q *Queries) scanCategory(row scanner) (core.Category, error) {
	var (
		c                 core.Category
		id, kind          string
		symbol, text      string
		hidden            bool
		created, lastUsed int64
	)
	if err := row.Scan(&id, &c.Name, &kind, &symbol, &text, &c.Color, &c.LighterColor, &hidden, &created, &lastUsed); err != nil {
		return core.Category{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.Category{}, fmt.Errorf("decode category id: %w", err)
	}
	c.ID = parsed
	c.Kind = core.CategoryKind(kind)
	if symbol != "" {
		c.Icon = core.SymbolIcon(symbol)
	} else {
		c.Icon = core.TextIcon(text)
	}
	c.Hidden = hidden
	c.CreatedAt = q.fromUnix(created)
	c.LastUsedAt = q.fromUnix(lastUsed)
	return c, nil
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) error {
	symbol, _ := c.Icon.Symbol()
	text, _ := c.Icon.Text()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO category (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, string(c.Kind), symbol, text, c.Color, c.LighterColor, c.Hidden,
		toUnix(c.CreatedAt), toUnix(c.LastUsedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM category WHERE id = ?`, id.String())
	c, err := q.scanCategory(row)
	if err != nil {
		return core.Category{}, notFound(err, "get category")
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, includeHidden bool) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM category`
	if !includeHidden {
		query += ` WHERE hidden = 0`
	}
	query += ` ORDER BY kind, name`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := q.scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM category`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	symbol, _ := c.Icon.Symbol()
	text, _ := c.Icon.Text()
	res, err := q.db.ExecContext(ctx,
		`UPDATE category SET name = ?, kind = ?, icon_symbol = ?, icon_text = ?, color = ?, lighter_color = ?, hidden = ?
		 WHERE id = ?`,
		c.Name, string(c.Kind), symbol, text, c.Color, c.LighterColor, c.Hidden, c.ID.String())
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res, "update category")
}

func (q *Queries) TouchCategory(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE category SET last_used_at = MAX(last_used_at, ?) WHERE id = ?`, toUnix(at), id.String())
	if err != nil {
		return fmt.Errorf("touch category: %w", err)
	}
	return nil
}

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM category WHERE id = ?`, id.String())
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return fmt.Errorf("delete category: %w", core.ErrCategoryInUse)
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res, "delete category")
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

// Payment methods

const methodColumns = `id, name, kind, tracks_balance, balance, currency_code, identifier_number, color`

func (q *Queries) scanPaymentMethod(row scanner) (core.PaymentMethod, error) {
	var (
		p                     core.PaymentMethod
		id, kind              string
		balance, currencyCode string
	)
	if err := row.Scan(&id, &p.Name, &kind, &p.TracksBalance, &balance, &currencyCode, &p.IdentifierNumber, &p.Color); err != nil {
		return core.PaymentMethod{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("decode payment method id: %w", err)
	}
	p.ID = parsed
	p.Kind = core.MethodKind(kind)
	if p.Balance, err = money(balance, currencyCode); err != nil {
		return core.PaymentMethod{}, err
	}
	return p, nil
}

func (q *Queries) InsertPaymentMethod(ctx context.Context, p core.PaymentMethod) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payment_method (`+methodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, string(p.Kind), p.TracksBalance, p.Balance.Amount.String(),
		p.Balance.Currency.Code, p.IdentifierNumber, p.Color)
	if err != nil {
		if isConstraint(err, "UNIQUE") && p.Kind == core.Cash {
			return fmt.Errorf("insert payment method: %w", core.ErrCashMethodExists)
		}
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

func (q *Queries) GetPaymentMethod(ctx context.Context, id uuid.UUID) (core.PaymentMethod, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+methodColumns+` FROM payment_method WHERE id = ?`, id.String())
	p, err := q.scanPaymentMethod(row)
	if err != nil {
		return core.PaymentMethod{}, notFound(err, "get payment method")
	}
	return p, nil
}

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+methodColumns+` FROM payment_method ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentMethod
	for rows.Next() {
		p, err := q.scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) CountCashMethods(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_method WHERE kind = 'cash'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cash methods: %w", err)
	}
	return n, nil
}

func (q *Queries) UpdatePaymentMethodBalance(ctx context.Context, id uuid.UUID, balance core.Money) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE payment_method SET balance = ?, currency_code = ? WHERE id = ?`,
		balance.Amount.String(), balance.Currency.Code, id.String())
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return requireRow(res, "update balance")
}

// Transactions

const txnColumns = `id, amount, currency_code, payment_method_id, date, note, category_id, budget_line_id, top_up_id, leg_direction`

func (q *Queries) scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                             core.Transaction
		id, amount, code, method      string
		date                          int64
		category, budgetLine, topUpID sql.NullString
		direction                     string
	)
	if err := row.Scan(&id, &amount, &code, &method, &date, &t.Note, &category, &budgetLine, &topUpID, &direction); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction id: %w", err)
	}
	if t.PaymentMethodID, err = uuid.Parse(method); err != nil {
		return core.Transaction{}, fmt.Errorf("decode payment method id: %w", err)
	}
	if t.Amount, err = money(amount, code); err != nil {
		return core.Transaction{}, err
	}
	t.Date = q.fromUnix(date)

	categoryID, err := parseNullID(category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode category id: %w", err)
	}
	if categoryID != uuid.Nil {
		lineID, err := parseNullID(budgetLine)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("decode budget line id: %w", err)
		}
		t.Entry = core.CategoryEntry{CategoryID: categoryID, BudgetLineID: lineID}
		return t, nil
	}
	top, err := parseNullID(topUpID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode top-up id: %w", err)
	}
	t.Entry = core.TransferLeg{TopUpID: top, Direction: core.LegDirection(direction)}
	return t, nil
}

func txnEntryArgs(t core.Transaction) (category, budgetLine, topUp sql.NullString, direction string) {
	switch e := t.Entry.(type) {
	case core.CategoryEntry:
		return nullID(e.CategoryID), nullID(e.BudgetLineID), sql.NullString{}, ""
	case core.TransferLeg:
		return sql.NullString{}, sql.NullString{}, nullID(e.TopUpID), string(e.Direction)
	}
	return sql.NullString{}, sql.NullString{}, sql.NullString{}, ""
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	category, budgetLine, topUp, direction := txnEntryArgs(t)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO txn (`+txnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Amount.Amount.String(), t.Amount.Currency.Code, t.PaymentMethodID.String(),
		toUnix(t.Date), t.Note, category, budgetLine, topUp, direction)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM txn WHERE id = ?`, id.String())
	t, err := q.scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "get transaction")
	}
	return t, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	category, budgetLine, topUp, direction := txnEntryArgs(t)
	res, err := q.db.ExecContext(ctx,
		`UPDATE txn SET amount = ?, currency_code = ?, payment_method_id = ?, date = ?, note = ?,
		 category_id = ?, budget_line_id = ?, top_up_id = ?, leg_direction = ?
		 WHERE id = ?`,
		t.Amount.Amount.String(), t.Amount.Currency.Code, t.PaymentMethodID.String(), toUnix(t.Date), t.Note,
		category, budgetLine, topUp, direction, t.ID.String())
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res, "update transaction")
}

func (q *Queries) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM txn WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "delete transaction")
}

func (q *Queries) listTransactions(ctx context.Context, what, where string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+txnColumns+` FROM txn WHERE `+where+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := q.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactionsBetween returns transactions dated within [start, end].
func (q *Queries) ListTransactionsBetween(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	return q.listTransactions(ctx, "list transactions", `date >= ? AND date <= ?`, toUnix(start), toUnix(end))
}

func (q *Queries) ListTransactionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]core.Transaction, error) {
	return q.listTransactions(ctx, "list transactions by category", `category_id = ?`, categoryID.String())
}

func (q *Queries) ListTransactionsByBudgetLine(ctx context.Context, lineID uuid.UUID) ([]core.Transaction, error) {
	return q.listTransactions(ctx, "list transactions by budget line", `budget_line_id = ?`, lineID.String())
}

func (q *Queries) ReassignTransactionCategory(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE txn SET category_id = ? WHERE category_id = ?`, to.String(), from.String())
	if err != nil {
		return 0, fmt.Errorf("reassign transactions: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queries) RepointTransactionBudgetLine(ctx context.Context, from, to uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `UPDATE txn SET budget_line_id = ? WHERE budget_line_id = ?`, nullID(to), from.String())
	if err != nil {
		return fmt.Errorf("repoint transactions: %w", err)
	}
	return nil
}

// Top-ups

func (q *Queries) InsertTopUp(ctx context.Context, t core.TopUp) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO top_up (id, source_id, target_id) VALUES (?, ?, ?)`,
		t.ID.String(), t.SourceID.String(), t.TargetID.String())
	if err != nil {
		return fmt.Errorf("insert top-up: %w", err)
	}
	return nil
}

func (q *Queries) GetTopUp(ctx context.Context, id uuid.UUID) (core.TopUp, error) {
	var tid, source, target string
	err := q.db.QueryRowContext(ctx, `SELECT id, source_id, target_id FROM top_up WHERE id = ?`, id.String()).
		Scan(&tid, &source, &target)
	if err != nil {
		return core.TopUp{}, notFound(err, "get top-up")
	}
	var t core.TopUp
	if t.ID, err = uuid.Parse(tid); err != nil {
		return core.TopUp{}, fmt.Errorf("decode top-up id: %w", err)
	}
	if t.SourceID, err = uuid.Parse(source); err != nil {
		return core.TopUp{}, fmt.Errorf("decode top-up source: %w", err)
	}
	if t.TargetID, err = uuid.Parse(target); err != nil {
		return core.TopUp{}, fmt.Errorf("decode top-up target: %w", err)
	}
	return t, nil
}

func (q *Queries) DeleteTopUp(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM top_up WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete top-up: %w", err)
	}
	return requireRow(res, "delete top-up")
}

// Budgets

const budgetColumns = `id, period_kind, start_date, end_date`

func (q *Queries) scanPeriodicBudget(row scanner) (core.PeriodicBudget, error) {
	var (
		b          core.PeriodicBudget
		id, kind   string
		start, end int64
	)
	if err := row.Scan(&id, &kind, &start, &end); err != nil {
		return core.PeriodicBudget{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return core.PeriodicBudget{}, fmt.Errorf("decode budget id: %w", err)
	}
	b.ID = parsed
	b.Kind = core.PeriodKind(kind)
	b.StartDate = q.fromUnix(start)
	b.EndDate = q.fromUnix(end)
	return b, nil
}

// LatestPeriodicBudget returns the window with the greatest end date.
func (q *Queries) LatestPeriodicBudget(ctx context.Context) (core.PeriodicBudget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM periodic_budget ORDER BY end_date DESC LIMIT 1`)
	b, err := q.scanPeriodicBudget(row)
	if err != nil {
		return core.PeriodicBudget{}, notFound(err, "latest periodic budget")
	}
	return b, nil
}

// PeriodicBudgetAt returns the window containing t.
func (q *Queries) PeriodicBudgetAt(ctx context.Context, t time.Time) (core.PeriodicBudget, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM periodic_budget WHERE start_date <= ? AND end_date >= ? ORDER BY start_date DESC LIMIT 1`,
		toUnix(t), toUnix(t))
	b, err := q.scanPeriodicBudget(row)
	if err != nil {
		return core.PeriodicBudget{}, notFound(err, "periodic budget at time")
	}
	return b, nil
}

func (q *Queries) ListPeriodicBudgets(ctx context.Context) ([]core.PeriodicBudget, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM periodic_budget ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("list periodic budgets: %w", err)
	}
	defer rows.Close()

	var out []core.PeriodicBudget
	for rows.Next() {
		b, err := q.scanPeriodicBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan periodic budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) InsertPeriodicBudget(ctx context.Context, b core.PeriodicBudget) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO periodic_budget (`+budgetColumns+`) VALUES (?, ?, ?, ?)`,
		b.ID.String(), string(b.Kind), toUnix(b.StartDate), toUnix(b.EndDate))
	if err != nil {
		if isConstraint(err, "UNIQUE") {
			return fmt.Errorf("insert periodic budget starting %s: %w", b.StartDate.Format(time.RFC3339), core.ErrWindowExists)
		}
		return fmt.Errorf("insert periodic budget: %w", err)
	}
	return nil
}

// DeleteAllBudgets removes every window and line and unlinks the transactions
// that were charged to them.
func (q *Queries) DeleteAllBudgets(ctx context.Context) (int64, error) {
	if _, err := q.db.ExecContext(ctx, `UPDATE txn SET budget_line_id = NULL WHERE budget_line_id IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("unlink transactions: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM budget_line`); err != nil {
		return 0, fmt.Errorf("delete budget lines: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM periodic_budget`)
	if err != nil {
		return 0, fmt.Errorf("delete periodic budgets: %w", err)
	}
	return res.RowsAffected()
}

// Budget lines

const lineColumns = `id, periodic_budget_id, category_id, limit_amount, used_amount, currency_code, sort_order`

func (q *Queries) scanBudgetLine(row scanner) (core.BudgetLine, error) {
	var (
		l                        core.BudgetLine
		id, budgetID, categoryID string
		limitAmount, used, code  string
	)
	if err := row.Scan(&id, &budgetID, &categoryID, &limitAmount, &used, &code, &l.Order); err != nil {
		return core.BudgetLine{}, err
	}
	var err error
	if l.ID, err = uuid.Parse(id); err != nil {
		return core.BudgetLine{}, fmt.Errorf("decode budget line id: %w", err)
	}
	if l.PeriodicBudgetID, err = uuid.Parse(budgetID); err != nil {
		return core.BudgetLine{}, fmt.Errorf("decode budget id: %w", err)
	}
	if l.CategoryID, err = uuid.Parse(categoryID); err != nil {
		return core.BudgetLine{}, fmt.Errorf("decode category id: %w", err)
	}
	if l.Limit, err = money(limitAmount, code); err != nil {
		return core.BudgetLine{}, err
	}
	if l.Used, err = money(used, code); err != nil {
		return core.BudgetLine{}, err
	}
	return l, nil
}

func (q *Queries) InsertBudgetLine(ctx context.Context, l core.BudgetLine) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budget_line (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.PeriodicBudgetID.String(), l.CategoryID.String(),
		l.Limit.Amount.String(), l.Used.Amount.String(), l.Limit.Currency.Code, l.Order)
	if err != nil {
		return fmt.Errorf("insert budget line: %w", err)
	}
	return nil
}

func (q *Queries) GetBudgetLine(ctx context.Context, id uuid.UUID) (core.BudgetLine, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+lineColumns+` FROM budget_line WHERE id = ?`, id.String())
	l, err := q.scanBudgetLine(row)
	if err != nil {
		return core.BudgetLine{}, notFound(err, "get budget line")
	}
	return l, nil
}

// BudgetLineFor returns the line of a category within one window.
func (q *Queries) BudgetLineFor(ctx context.Context, budgetID, categoryID uuid.UUID) (core.BudgetLine, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM budget_line WHERE periodic_budget_id = ? AND category_id = ?`,
		budgetID.String(), categoryID.String())
	l, err := q.scanBudgetLine(row)
	if err != nil {
		return core.BudgetLine{}, notFound(err, "budget line for category")
	}
	return l, nil
}

func (q *Queries) listBudgetLines(ctx context.Context, where string, arg string) ([]core.BudgetLine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM budget_line WHERE `+where+` ORDER BY sort_order, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list budget lines: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetLine
	for rows.Next() {
		l, err := q.scanBudgetLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) ListBudgetLines(ctx context.Context, budgetID uuid.UUID) ([]core.BudgetLine, error) {
	return q.listBudgetLines(ctx, `periodic_budget_id = ?`, budgetID.String())
}

func (q *Queries) ListBudgetLinesByCategory(ctx context.Context, categoryID uuid.UUID) ([]core.BudgetLine, error) {
	return q.listBudgetLines(ctx, `category_id = ?`, categoryID.String())
}

func (q *Queries) UpdateBudgetLineUsed(ctx context.Context, id uuid.UUID, used core.Money) error {
	res, err := q.db.ExecContext(ctx, `UPDATE budget_line SET used_amount = ? WHERE id = ?`, used.Amount.String(), id.String())
	if err != nil {
		return fmt.Errorf("update budget line usage: %w", err)
	}
	return requireRow(res, "update budget line usage")
}

func (q *Queries) UpdateBudgetLine(ctx context.Context, l core.BudgetLine) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budget_line SET category_id = ?, limit_amount = ?, used_amount = ?, currency_code = ?, sort_order = ? WHERE id = ?`,
		l.CategoryID.String(), l.Limit.Amount.String(), l.Used.Amount.String(), l.Limit.Currency.Code, l.Order, l.ID.String())
	if err != nil {
		return fmt.Errorf("update budget line: %w", err)
	}
	return requireRow(res, "update budget line")
}

func (q *Queries) DeleteBudgetLine(ctx context.Context, id uuid.UUID) error {
	if err := q.RepointTransactionBudgetLine(ctx, id, uuid.Nil); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM budget_line WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete budget line: %w", err)
	}
	return requireRow(res, "delete budget line")
}
