package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(payment domain.Payment, events []domain.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, saga_id, method, status, amount_minor, currency,
			session_id, charge_id, fail_reason, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		payment.ID, payment.OrderID, payment.SagaID, string(payment.Method),
		string(payment.Status), payment.AmountMinor, payment.Currency,
		payment.SessionID, payment.ChargeID, payment.FailReason,
		payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	if err = enqueueOutboxTx(ctx, tx, events); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) Get(id string) (domain.Payment, error) {
	return r.getByField("id", id)
}

func (r *paymentRepository) GetByOrderID(orderID string) (domain.Payment, error) {
	return r.getByField("order_id", orderID)
}

func (r *paymentRepository) GetBySessionID(sessionID string) (domain.Payment, error) {
	if sessionID == "" {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return r.getByField("session_id", sessionID)
}

func (r *paymentRepository) getByField(field, value string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		payment domain.Payment
		method  string
		status  string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, saga_id, method, status, amount_minor, currency,
		       session_id, charge_id, fail_reason, version, created_at, updated_at
		FROM payments
		WHERE `+field+` = $1
	`, value).Scan(
		&payment.ID, &payment.OrderID, &payment.SagaID, &method, &status,
		&payment.AmountMinor, &payment.Currency, &payment.SessionID,
		&payment.ChargeID, &payment.FailReason, &payment.Version,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment by %s: %w", field, err)
	}

	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

func (r *paymentRepository) Save(payment domain.Payment, events []domain.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    session_id = $2,
		    charge_id = $3,
		    fail_reason = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(payment.Status),
		payment.SessionID,
		payment.ChargeID,
		payment.FailReason,
		time.Now().UTC(),
		payment.ID,
		payment.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var id string
		scanErr := tx.QueryRowContext(ctx, `SELECT id FROM payments WHERE id = $1`, payment.ID).Scan(&id)
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = domain.ErrPaymentNotFound
			return err
		}
		if scanErr != nil {
			err = fmt.Errorf("check payment exists: %w", scanErr)
			return err
		}
		err = domain.ErrVersionConflict
		return err
	}

	if err = enqueueOutboxTx(ctx, tx, events); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) ListStale(before time.Time, limit int) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, saga_id, method, status, amount_minor, currency,
		       session_id, charge_id, fail_reason, version, created_at, updated_at
		FROM payments
		WHERE status IN ('pending', 'processing')
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			method  string
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.OrderID, &payment.SagaID, &method, &status,
			&payment.AmountMinor, &payment.Currency, &payment.SessionID,
			&payment.ChargeID, &payment.FailReason, &payment.Version,
			&payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stale payment: %w", err)
		}
		payment.Method = domain.PaymentMethod(method)
		payment.Status = domain.PaymentStatus(status)
		result = append(result, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale payments: %w", err)
	}

	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
