package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/idea-vending/vendsync/internal/infrastructure/database"
)

// ListFilter narrows payment history queries. Zero values mean "no filter".
type ListFilter struct {
	MachineID    int64
	EnterpriseID int64
	OnlyFailed   bool
	Limit        int
}

// defaultListLimit bounds unfiltered history queries.
const defaultListLimit = 100

// Repository stores and retrieves payment records.
type Repository interface {
	// Save upserts a payment record. Records carrying a real gateway
	// identifier are deduplicated on it (the stream delivers at-least-once);
	// records without one are always inserted.
	Save(ctx context.Context, p Payment) error

	// List returns payment history newest-first, narrowed by the filter.
	List(ctx context.Context, filter ListFilter) ([]Payment, error)

	// GetByPaymentID returns a record by its gateway identifier.
	GetByPaymentID(ctx context.Context, paymentID int64) (Payment, error)
}

// ErrNotFound is returned when a payment lookup matches nothing.
var ErrNotFound = sql.ErrNoRows

// SQLiteRepository is the SQLite-backed Repository.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository over an open database.
// The payments schema must already be migrated.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// paymentColumns is the column list shared by all queries, in scan order.
const paymentColumns = `payment_id, successful, amount, date, product,
	response_code, response_message, commerce_code, terminal_id,
	authorization_code, last_digits, operation_number, card_type, card_brand,
	share_type, shares_number, shares_amount, machine_id, enterprise_id,
	machine_name, created_at, updated_at`

// Save implements Repository.
func (r *SQLiteRepository) Save(ctx context.Context, p Payment) error {
	var cardType sql.NullString
	if p.CardType != "" {
		cardType = sql.NullString{String: p.CardType, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payment_id) WHERE payment_id > 0 DO UPDATE SET
			successful = excluded.successful,
			amount = excluded.amount,
			date = excluded.date,
			product = excluded.product,
			response_code = excluded.response_code,
			response_message = excluded.response_message,
			commerce_code = excluded.commerce_code,
			terminal_id = excluded.terminal_id,
			authorization_code = excluded.authorization_code,
			last_digits = excluded.last_digits,
			operation_number = excluded.operation_number,
			card_type = excluded.card_type,
			card_brand = excluded.card_brand,
			share_type = excluded.share_type,
			shares_number = excluded.shares_number,
			shares_amount = excluded.shares_amount,
			machine_id = excluded.machine_id,
			enterprise_id = excluded.enterprise_id,
			machine_name = excluded.machine_name,
			updated_at = excluded.updated_at
	`,
		p.ID, p.Successful, p.Amount, p.Date, p.Product,
		p.ResponseCode, p.ResponseMessage, p.CommerceCode, p.TerminalID,
		p.AuthorizationCode, p.LastDigits, p.OperationNumber, cardType, p.CardBrand,
		p.ShareType, p.SharesNumber, p.SharesAmount, p.MachineID, p.EnterpriseID,
		p.MachineName, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving payment %d: %w", p.ID, err)
	}
	return nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	var args []interface{}

	if filter.MachineID > 0 {
		query += " AND machine_id = ?"
		args = append(args, filter.MachineID)
	}
	if filter.EnterpriseID > 0 {
		query += " AND enterprise_id = ?"
		args = append(args, filter.EnterpriseID)
	}
	if filter.OnlyFailed {
		query += " AND successful = 0"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY date DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payments: %w", err)
	}
	return payments, nil
}

// GetByPaymentID implements Repository.
func (r *SQLiteRepository) GetByPaymentID(ctx context.Context, paymentID int64) (Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = ?`,
		paymentID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("getting payment %d: %w", paymentID, err)
	}
	return p, nil
}

// scanner abstracts sql.Row and sql.Rows for scanPayment.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(s scanner) (Payment, error) {
	var p Payment
	var cardType sql.NullString

	err := s.Scan(
		&p.ID, &p.Successful, &p.Amount, &p.Date, &p.Product,
		&p.ResponseCode, &p.ResponseMessage, &p.CommerceCode, &p.TerminalID,
		&p.AuthorizationCode, &p.LastDigits, &p.OperationNumber, &cardType, &p.CardBrand,
		&p.ShareType, &p.SharesNumber, &p.SharesAmount, &p.MachineID, &p.EnterpriseID,
		&p.MachineName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Payment{}, err
		}
		return Payment{}, fmt.Errorf("scanning payment row: %w", err)
	}
	if cardType.Valid {
		p.CardType = cardType.String
	}
	return p, nil
}
