package repository

import (
	"context"

	"github.com/senyabanana/forge-service/internal/commission"
	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VendorRepository - интерфейс для поиска профилей и реквизитов исполнителей.
type VendorRepository interface {
	GetVendor(ctx context.Context, vendorId string) (*models.Vendor, error)
	GetVendorByUserID(ctx context.Context, userId string) (*models.Vendor, error)
	GetPayoutAccount(ctx context.Context, vendorId string) (*models.PayoutAccount, error)
}

// PromoRepository - интерфейс для чтения промокодов.
type PromoRepository interface {
	GetPromo(ctx context.Context, code string) (*commission.Promo, error)
}

// PostgresVendorRepository - реализация VendorRepository и PromoRepository для базы данных.
type PostgresVendorRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresVendorRepository создает новый экземпляр PostgresVendorRepository.
func NewPostgresVendorRepository(db *pgxpool.Pool) *PostgresVendorRepository {
	return &PostgresVendorRepository{DB: db}
}

// GetVendor возвращает профиль исполнителя по ID.
func (r *PostgresVendorRepository) GetVendor(ctx context.Context, vendorId string) (*models.Vendor, error) {
	var vendor models.Vendor
	query := `SELECT id, user_id, business_name, email FROM vendor_profile WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, vendorId).Scan(&vendor.ID, &vendor.UserID, &vendor.BusinessName, &vendor.Email)
	if err != nil {
		return nil, mapNotFound(err, "vendor")
	}
	return &vendor, nil
}

// GetVendorByUserID находит профиль исполнителя по пользователю.
func (r *PostgresVendorRepository) GetVendorByUserID(ctx context.Context, userId string) (*models.Vendor, error) {
	var vendor models.Vendor
	query := `SELECT id, user_id, business_name, email FROM vendor_profile WHERE user_id = $1`
	err := r.DB.QueryRow(ctx, query, userId).Scan(&vendor.ID, &vendor.UserID, &vendor.BusinessName, &vendor.Email)
	if err != nil {
		return nil, mapNotFound(err, "vendor profile")
	}
	return &vendor, nil
}

// GetPayoutAccount возвращает реквизиты исполнителя для выплат.
func (r *PostgresVendorRepository) GetPayoutAccount(ctx context.Context, vendorId string) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	query := `SELECT vendor_id, account_holder, account_number, ifsc, fund_account_id
	          FROM vendor_payout_account WHERE vendor_id = $1`
	err := r.DB.QueryRow(ctx, query, vendorId).Scan(
		&account.VendorID,
		&account.AccountHolder,
		&account.AccountNumber,
		&account.IFSC,
		&account.FundAccountID,
	)
	if err != nil {
		return nil, mapNotFound(err, "payout account")
	}
	return &account, nil
}

// GetPromo возвращает промокод.
func (r *PostgresVendorRepository) GetPromo(ctx context.Context, code string) (*commission.Promo, error) {
	var promo commission.Promo
	query := `SELECT code, discount_type, value, max_discount, min_project_value, valid_from, valid_until,
	                 usage_limit, used_count, active
	          FROM promo_code WHERE code = $1`
	err := r.DB.QueryRow(ctx, query, code).Scan(
		&promo.Code,
		&promo.DiscountType,
		&promo.Value,
		&promo.MaxDiscount,
		&promo.MinProjectValue,
		&promo.ValidFrom,
		&promo.ValidUntil,
		&promo.UsageLimit,
		&promo.UsedCount,
		&promo.Active,
	)
	if err != nil {
		return nil, mapNotFound(err, "promo code")
	}
	return &promo, nil
}
