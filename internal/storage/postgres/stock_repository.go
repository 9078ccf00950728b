package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type stockRepository struct {
	db *sql.DB
}

// NewStockRepository создаёт PostgreSQL-реализацию StockRepository.
// Списание остатка — одиночный условный UPDATE с предикатом
// available >= qty: конкурирующие резервы сериализуются блокировкой
// строки, oversell исключён на уровне базы.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepository{db: store.DB()}
}

func (r *stockRepository) Get(sku string) (domain.StockLevel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var level domain.StockLevel
	err := r.db.QueryRowContext(ctx, `
		SELECT sku, available, reserved, updated_at
		FROM stock_levels
		WHERE sku = $1
	`, sku).Scan(&level.SKU, &level.Available, &level.Reserved, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockLevel{}, domain.ErrStockNotFound
		}
		return domain.StockLevel{}, fmt.Errorf("select stock level: %w", err)
	}

	return level, nil
}

func (r *stockRepository) Upsert(level domain.StockLevel) error {
	if level.SKU == "" {
		return domain.ErrItemSKURequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_levels (sku, available, reserved, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (sku) DO UPDATE
		SET available = EXCLUDED.available,
		    reserved = EXCLUDED.reserved,
		    updated_at = EXCLUDED.updated_at
	`, level.SKU, level.Available, level.Reserved, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}

	return nil
}

func (r *stockRepository) Reserve(orderID, sku string, qty int32, eventID string) (domain.ReserveOutcome, error) {
	if qty <= 0 {
		return "", domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Уникальность (order_id, sku) отсекает дубль доставки до того,
	// как он успеет повторно списать остаток.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_reservations (order_id, sku, qty, state, event_id, applied_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (order_id, sku) DO NOTHING
	`, orderID, sku, qty, string(domain.ReservationStateApplied), eventID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert reservation: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("reservation rows affected: %w", err)
	}
	if inserted == 0 {
		_ = tx.Rollback()
		return domain.ReserveDuplicate, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE stock_levels
		SET available = available - $2,
		    reserved = reserved + $2,
		    updated_at = $3
		WHERE sku = $1
		  AND available >= $2
	`, sku, qty, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("decrement stock level: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("stock rows affected: %w", err)
	}
	if updated == 0 {
		var exists bool
		if scanErr := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM stock_levels WHERE sku = $1)
		`, sku).Scan(&exists); scanErr != nil {
			err = fmt.Errorf("check stock exists: %w", scanErr)
			return "", err
		}
		if !exists {
			err = domain.ErrStockNotFound
			return "", err
		}
		err = domain.ErrInsufficientStock
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reserve: %w", err)
	}

	return domain.ReserveApplied, nil
}

func (r *stockRepository) Release(orderID, sku string) (domain.ReleaseOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var qty int32
	err = tx.QueryRowContext(ctx, `
		UPDATE stock_reservations
		SET state = $3,
		    released_at = $4
		WHERE order_id = $1
		  AND sku = $2
		  AND state = $5
		RETURNING qty
	`, orderID, sku, string(domain.ReservationStateReleased), time.Now().UTC(),
		string(domain.ReservationStateApplied)).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		var state string
		scanErr := tx.QueryRowContext(ctx, `
			SELECT state FROM stock_reservations WHERE order_id = $1 AND sku = $2
		`, orderID, sku).Scan(&state)
		_ = tx.Rollback()
		err = nil
		if errors.Is(scanErr, sql.ErrNoRows) {
			return domain.ReleaseNoReservation, nil
		}
		if scanErr != nil {
			return "", fmt.Errorf("check reservation state: %w", scanErr)
		}
		return domain.ReleaseDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("release reservation: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE stock_levels
		SET available = available + $2,
		    reserved = reserved - $2,
		    updated_at = $3
		WHERE sku = $1
	`, sku, qty, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("increment stock level: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit release: %w", err)
	}

	return domain.ReleaseApplied, nil
}

func (r *stockRepository) ListReservations(orderID string) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, sku, qty, state, event_id, applied_at, released_at
		FROM stock_reservations
		WHERE order_id = $1
		ORDER BY sku ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Reservation, 0)
	for rows.Next() {
		var (
			res        domain.Reservation
			state      string
			releasedAt sql.NullTime
		)
		if err := rows.Scan(&res.OrderID, &res.SKU, &res.Qty, &state, &res.EventID,
			&res.AppliedAt, &releasedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.State = domain.ReservationState(state)
		if releasedAt.Valid {
			res.ReleasedAt = releasedAt.Time.UTC()
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	return result, nil
}

var _ domain.StockRepository = (*stockRepository)(nil)
