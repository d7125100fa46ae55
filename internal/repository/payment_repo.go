package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository - интерфейс для работы с платежами и выплатами.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) (bool, error)
	GetPayment(ctx context.Context, paymentId string) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderId string) (*models.Payment, error)
	GetActivePayment(ctx context.Context, contractId string) (*models.Payment, error)
	MarkProcessing(ctx context.Context, orderId, gatewayPaymentId, signature string) (bool, error)
	MarkCompleted(ctx context.Context, orderId, gatewayPaymentId string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderId string) (bool, error)
	ListReleasable(ctx context.Context, completedBefore time.Time, limit int) ([]models.Payment, error)

	HasCompletedPayout(ctx context.Context, paymentId string) (bool, error)
	CountPayouts(ctx context.Context, paymentId string) (int, error)
	StartPayout(ctx context.Context, payout *models.VendorPayout) (bool, error)
	CompletePayout(ctx context.Context, gatewayPayoutId string) (bool, error)
	FailPayout(ctx context.Context, gatewayPayoutId string) (bool, error)
}

// PostgresPaymentRepository - реализация PaymentRepository для базы данных.
type PostgresPaymentRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresPaymentRepository создает новый экземпляр PostgresPaymentRepository.
func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{DB: db}
}

const paymentColumns = `id, contract_id, amount, currency, status, commission, gateway_order_id,
	gateway_payment_id, gateway_signature, completed_at, created_at, updated_at`

const releasableColumns = `p.id, p.contract_id, p.amount, p.currency, p.status, p.commission, p.gateway_order_id,
	p.gateway_payment_id, p.gateway_signature, p.completed_at, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var payment models.Payment
	err := row.Scan(
		&payment.ID,
		&payment.ContractID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Commission,
		&payment.GatewayOrderID,
		&payment.GatewayPaymentID,
		&payment.GatewaySignature,
		&payment.CompletedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreatePayment сохраняет платеж. Если у договора уже есть активный платеж, возвращает false.
func (r *PostgresPaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) (bool, error) {
	insertQuery := `INSERT INTO payment (id, contract_id, amount, currency, status, commission, gateway_order_id, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	                ON CONFLICT (contract_id) WHERE status <> 'FAILED' DO NOTHING`
	tag, err := r.DB.Exec(
		ctx,
		insertQuery,
		payment.ID,
		payment.ContractID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Commission,
		payment.GatewayOrderID,
		payment.CreatedAt,
		payment.UpdatedAt)
	if err != nil {
		return false, dbError(err, "failed to create payment")
	}
	return tag.RowsAffected() == 1, nil
}

// GetPayment возвращает платеж по ID.
func (r *PostgresPaymentRepository) GetPayment(ctx context.Context, paymentId string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment WHERE id = $1`
	payment, err := scanPayment(r.DB.QueryRow(ctx, query, paymentId))
	if err != nil {
		return nil, mapNotFound(err, "payment")
	}
	return payment, nil
}

// GetPaymentByOrderID возвращает платеж по идентификатору заказа в шлюзе.
func (r *PostgresPaymentRepository) GetPaymentByOrderID(ctx context.Context, orderId string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment WHERE gateway_order_id = $1`
	payment, err := scanPayment(r.DB.QueryRow(ctx, query, orderId))
	if err != nil {
		return nil, mapNotFound(err, "payment")
	}
	return payment, nil
}

// GetActivePayment возвращает не проваленный платеж по договору.
func (r *PostgresPaymentRepository) GetActivePayment(ctx context.Context, contractId string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment WHERE contract_id = $1 AND status <> $2`
	payment, err := scanPayment(r.DB.QueryRow(ctx, query, contractId, models.FailedPayment))
	if err != nil {
		return nil, mapNotFound(err, "payment")
	}
	return payment, nil
}

// MarkProcessing фиксирует подтверждение оплаты клиентом: PENDING -> PROCESSING.
func (r *PostgresPaymentRepository) MarkProcessing(ctx context.Context, orderId, gatewayPaymentId, signature string) (bool, error) {
	updateQuery := `UPDATE payment
	                SET status = $1, gateway_payment_id = $2, gateway_signature = $3, updated_at = now()
	                WHERE gateway_order_id = $4 AND status = $5`
	tag, err := r.DB.Exec(ctx, updateQuery, models.ProcessingPayment, gatewayPaymentId, signature, orderId, models.PendingPayment)
	if err != nil {
		return false, dbError(err, "failed to update payment")
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted фиксирует поступление средств по уведомлению шлюза.
func (r *PostgresPaymentRepository) MarkCompleted(ctx context.Context, orderId, gatewayPaymentId string, at time.Time) (bool, error) {
	updateQuery := `UPDATE payment
	                SET status = $1, gateway_payment_id = COALESCE(gateway_payment_id, $2), completed_at = $3, updated_at = now()
	                WHERE gateway_order_id = $4 AND status IN ($5, $6)`
	tag, err := r.DB.Exec(ctx, updateQuery,
		models.CompletedPayment, gatewayPaymentId, at, orderId, models.PendingPayment, models.ProcessingPayment)
	if err != nil {
		return false, dbError(err, "failed to complete payment")
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed отмечает платеж проваленным.
func (r *PostgresPaymentRepository) MarkFailed(ctx context.Context, orderId string) (bool, error) {
	updateQuery := `UPDATE payment SET status = $1, updated_at = now()
	                WHERE gateway_order_id = $2 AND status IN ($3, $4)`
	tag, err := r.DB.Exec(ctx, updateQuery, models.FailedPayment, orderId, models.PendingPayment, models.ProcessingPayment)
	if err != nil {
		return false, dbError(err, "failed to fail payment")
	}
	return tag.RowsAffected() == 1, nil
}

// ListReleasable возвращает завершенные платежи, у которых истек период удержания.
// Платежи без полных реквизитов исполнителя и после проваленной выплаты не возвращаются:
// их повторяет только администратор или исполнитель.
func (r *PostgresPaymentRepository) ListReleasable(ctx context.Context, completedBefore time.Time, limit int) ([]models.Payment, error) {
	query := `SELECT ` + releasableColumns + ` FROM payment p
	          JOIN contract c ON c.id = p.contract_id
	          JOIN vendor_payout_account a ON a.vendor_id = c.vendor_id
	          WHERE p.status = $1 AND p.completed_at <= $2
	            AND a.account_holder <> '' AND a.account_number <> ''
	            AND a.ifsc <> '' AND a.fund_account_id <> ''
	            AND NOT EXISTS (SELECT 1 FROM vendor_payout vp
	                            WHERE vp.payment_id = p.id AND vp.status IN ($3, $4))
	          ORDER BY p.completed_at
	          LIMIT $5`
	rows, err := r.DB.Query(ctx, query, models.CompletedPayment, completedBefore, models.CompletedPayout, models.FailedPayout, limit)
	if err != nil {
		return nil, dbError(err, "failed to list releasable payments")
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan payment")
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to list releasable payments")
	}
	return payments, nil
}

// HasCompletedPayout сообщает, была ли уже завершена выплата по платежу.
func (r *PostgresPaymentRepository) HasCompletedPayout(ctx context.Context, paymentId string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM vendor_payout WHERE payment_id = $1 AND status = $2)`
	if err := r.DB.QueryRow(ctx, query, paymentId, models.CompletedPayout).Scan(&exists); err != nil {
		return false, dbError(err, "failed to check payouts")
	}
	return exists, nil
}

// CountPayouts возвращает число попыток выплаты по платежу.
func (r *PostgresPaymentRepository) CountPayouts(ctx context.Context, paymentId string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM vendor_payout WHERE payment_id = $1`
	if err := r.DB.QueryRow(ctx, query, paymentId).Scan(&count); err != nil {
		return 0, dbError(err, "failed to count payouts")
	}
	return count, nil
}

// StartPayout переводит платеж в PAYOUT_PROCESSING и сохраняет выплату одной транзакцией.
func (r *PostgresPaymentRepository) StartPayout(ctx context.Context, payout *models.VendorPayout) (bool, error) {
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		paymentQuery := `UPDATE payment SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
		tag, err := tx.Exec(ctx, paymentQuery, models.PayoutProcessingPayment, payout.PaymentID, models.CompletedPayment)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errRollback
		}

		insertQuery := `INSERT INTO vendor_payout (id, payment_id, contract_id, vendor_id, amount, status, gateway_payout_id, initiated_at, updated_at)
		                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
		_, err = tx.Exec(ctx, insertQuery,
			payout.ID, payout.PaymentID, payout.ContractID, payout.VendorID, payout.Amount,
			payout.Status, payout.GatewayPayoutID, payout.InitiatedAt)
		if isUniqueViolation(err) {
			return errRollback
		}
		return err
	})
	return finishTx(err, "failed to start payout")
}

// CompletePayout отмечает выплату завершенной по уведомлению шлюза.
func (r *PostgresPaymentRepository) CompletePayout(ctx context.Context, gatewayPayoutId string) (bool, error) {
	updateQuery := `UPDATE vendor_payout SET status = $1, updated_at = now() WHERE gateway_payout_id = $2 AND status = $3`
	tag, err := r.DB.Exec(ctx, updateQuery, models.CompletedPayout, gatewayPayoutId, models.ProcessingPayout)
	if err != nil {
		return false, dbError(err, "failed to complete payout")
	}
	return tag.RowsAffected() == 1, nil
}

// FailPayout отмечает выплату проваленной и возвращает платеж в COMPLETED для повторной попытки.
func (r *PostgresPaymentRepository) FailPayout(ctx context.Context, gatewayPayoutId string) (bool, error) {
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var paymentId string
		payoutQuery := `UPDATE vendor_payout SET status = $1, updated_at = now()
		                WHERE gateway_payout_id = $2 AND status = $3
		                RETURNING payment_id`
		err := tx.QueryRow(ctx, payoutQuery, models.FailedPayout, gatewayPayoutId, models.ProcessingPayout).Scan(&paymentId)
		if errors.Is(err, pgx.ErrNoRows) {
			return errRollback
		}
		if err != nil {
			return err
		}

		paymentQuery := `UPDATE payment SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
		_, err = tx.Exec(ctx, paymentQuery, models.CompletedPayment, paymentId, models.PayoutProcessingPayment)
		return err
	})
	return finishTx(err, "failed to fail payout")
}
