package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/money"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	details, err := json.Marshal(t.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_transactions
		 (id, order_id, provider, type, method, amount, currency, details, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.OrderID, t.Provider, string(t.Type), string(t.Method),
		t.Amount.Amount.String(), t.Amount.Currency, details, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT id, order_id, provider, type, method, amount, currency, details, created_at
		 FROM payment_transactions WHERE id = $1`, id))
}

// List lists an order's transactions oldest first, so callers can replay the
// step history.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT id, order_id, provider, type, method, amount, currency, details, created_at
		 FROM payment_transactions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.OrderID != "" {
		query += fmt.Sprintf(" AND order_id = $%d", argIdx)
		args = append(args, f.OrderID)
		argIdx++
	}
	if f.Provider != nil {
		query += fmt.Sprintf(" AND provider = $%d", argIdx)
		args = append(args, *f.Provider)
		argIdx++
	}
	if f.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(*f.Type))
		argIdx++
	}

	query += " ORDER BY created_at ASC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// LatestByType retrieves the most recent transaction of the given type for an
// order.
func (r *TransactionRepository) LatestByType(ctx context.Context, orderID string, typ transaction.Type) (*transaction.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT id, order_id, provider, type, method, amount, currency, details, created_at
		 FROM payment_transactions
		 WHERE order_id = $1 AND type = $2
		 ORDER BY created_at DESC LIMIT 1`, orderID, string(typ)))
}

// scanTransaction scans a transaction from any source implementing the
// scanner interface.
func (r *TransactionRepository) scanTransaction(s scanner) (*transaction.Transaction, error) {
	t := &transaction.Transaction{Details: make(map[string]string)}
	var (
		typ       string
		method    string
		amountStr string
		currency  string
		details   []byte
	)
	err := s.Scan(&t.ID, &t.OrderID, &t.Provider, &typ, &method, &amountStr, &currency, &details, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = transaction.Type(typ)
	t.Method = transaction.PaymentMethod(method)
	t.Amount, err = money.FromString(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &t.Details); err != nil {
			return nil, fmt.Errorf("unmarshal transaction details: %w", err)
		}
	}
	return t, nil
}
