package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContractRepository - интерфейс для работы с договорами.
type ContractRepository interface {
	CreateContract(ctx context.Context, contract *models.Contract, eventFrom models.ForgeStatus) error
	GetContract(ctx context.Context, contractId string) (*models.Contract, error)
	GetContractByBid(ctx context.Context, bidId string) (*models.Contract, error)
	AddSignature(ctx context.Context, contractId string, role models.SignerRole, signature models.Signature) (*models.Contract, bool, error)
}

// PostgresContractRepository - реализация ContractRepository для базы данных.
type PostgresContractRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresContractRepository создает новый экземпляр PostgresContractRepository.
func NewPostgresContractRepository(db *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{DB: db}
}

const contractColumns = `id, event_id, bid_id, vendor_id, client_id, document, document_uri, document_hash,
	total_amount, deposit, milestones, commission, promo, signatures, status, signed_at, created_at`

func scanContract(row pgx.Row) (*models.Contract, error) {
	var contract models.Contract
	err := row.Scan(
		&contract.ID,
		&contract.EventID,
		&contract.BidID,
		&contract.VendorID,
		&contract.ClientID,
		&contract.Document,
		&contract.DocumentRef.URI,
		&contract.DocumentRef.SHA256,
		&contract.Total,
		&contract.Deposit,
		&contract.Milestones,
		&contract.Commission,
		&contract.Promo,
		&contract.Signatures,
		&contract.Status,
		&contract.SignedAt,
		&contract.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contract.Signatures == nil {
		contract.Signatures = map[models.SignerRole]models.Signature{}
	}
	return &contract, nil
}

// CreateContract сохраняет договор, списывает использование промокода и переводит
// мероприятие в COMMISSIONED. Все три изменения выполняются одной транзакцией.
func (r *PostgresContractRepository) CreateContract(ctx context.Context, contract *models.Contract, eventFrom models.ForgeStatus) error {
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		insertQuery := `INSERT INTO contract (id, event_id, bid_id, vendor_id, client_id, document, document_uri, document_hash,
		                                      total_amount, deposit, milestones, commission, promo, signatures, status, created_at)
		                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, '{}'::jsonb, $14, $15)`
		_, err := tx.Exec(
			ctx,
			insertQuery,
			contract.ID,
			contract.EventID,
			contract.BidID,
			contract.VendorID,
			contract.ClientID,
			contract.Document,
			contract.DocumentRef.URI,
			contract.DocumentRef.SHA256,
			contract.Total,
			contract.Deposit,
			contract.Milestones,
			contract.Commission,
			contract.Promo,
			contract.Status,
			contract.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return models.NewConflictError("contract already exists for this bid")
			}
			return err
		}

		if contract.Promo != nil {
			promoQuery := `UPDATE promo_code SET used_count = used_count + 1
			               WHERE code = $1 AND active AND (usage_limit = 0 OR used_count < usage_limit)`
			tag, err := tx.Exec(ctx, promoQuery, contract.Promo.Code)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != 1 {
				return models.NewValidationError("promo code %q is no longer available", contract.Promo.Code)
			}
		}

		ok, err := updateEventStatus(ctx, tx, contract.EventID, []models.ForgeStatus{eventFrom}, models.Commissioned)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewValidationError("event is no longer in %s", eventFrom)
		}
		return nil
	})
	if err != nil {
		return dbError(err, "failed to create contract")
	}
	return nil
}

// GetContract возвращает договор по ID.
func (r *PostgresContractRepository) GetContract(ctx context.Context, contractId string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contract WHERE id = $1`
	contract, err := scanContract(r.DB.QueryRow(ctx, query, contractId))
	if err != nil {
		return nil, mapNotFound(err, "contract")
	}
	return contract, nil
}

// GetContractByBid возвращает договор, созданный по предложению.
func (r *PostgresContractRepository) GetContractByBid(ctx context.Context, bidId string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contract WHERE bid_id = $1`
	contract, err := scanContract(r.DB.QueryRow(ctx, query, bidId))
	if err != nil {
		return nil, mapNotFound(err, "contract")
	}
	return contract, nil
}

// AddSignature добавляет подпись стороны одним условным обновлением.
//
// Подпись исполнителя принимается только поверх подписи заказчика. Статус меняется на
// SIGNED в том же UPDATE, который добавляет вторую подпись, поэтому при одновременной
// подписи обеими сторонами переход выполняется ровно один раз. Вместе с переходом
// мероприятие переводится в IN_FORGE. Если условие не выполнено, возвращается nil.
func (r *PostgresContractRepository) AddSignature(ctx context.Context, contractId string, role models.SignerRole, signature models.Signature) (*models.Contract, bool, error) {
	var (
		contract *models.Contract
		flipped  bool
	)
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		signQuery := `
			UPDATE contract
			SET signatures = signatures || jsonb_build_object($2::text, $3::jsonb),
			    status = CASE WHEN (signatures || jsonb_build_object($2::text, $3::jsonb)) ?& ARRAY['client', 'vendor']
			                  THEN $5 ELSE status END,
			    signed_at = CASE WHEN (signatures || jsonb_build_object($2::text, $3::jsonb)) ?& ARRAY['client', 'vendor']
			                     THEN $4::timestamptz ELSE signed_at END
			WHERE id = $1
			  AND status = $6
			  AND NOT (signatures ? $2::text)
			  AND ($2::text = 'client' OR signatures ? 'client')
			RETURNING ` + contractColumns
		var err error
		contract, err = scanContract(tx.QueryRow(ctx, signQuery,
			contractId, string(role), signature, signature.SignedAt, models.SignedContract, models.PendingContract))
		if err != nil {
			return err
		}

		if contract.Status != models.SignedContract {
			return nil
		}
		flipped = true
		_, err = updateEventStatus(ctx, tx, contract.EventID,
			[]models.ForgeStatus{models.WinnerSelected, models.Commissioned}, models.InForge)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, dbError(err, "failed to sign contract")
	}
	return contract, flipped, nil
}
