package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// BidRepository - интерфейс для работы с предложениями.
type BidRepository interface {
	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, bidId string) (*models.Bid, error)
	GetVendorBid(ctx context.Context, eventId, vendorId string) (*models.Bid, error)
	ListEventBids(ctx context.Context, eventId string, statuses []models.BidStatus, limit, offset int) ([]models.Bid, error)
	UpdateDraftBid(ctx context.Context, bid *models.Bid, to models.BidStatus) (bool, error)
	ReviseBid(ctx context.Context, bid *models.Bid, previous *models.BidSnapshot) (bool, error)
}

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, event_id, vendor_id, status, items, subtotal, taxes, total, notes, revised_at, previous, created_at, updated_at`

func scanBid(row pgx.Row) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID,
		&bid.EventID,
		&bid.VendorID,
		&bid.Status,
		&bid.Items,
		&bid.Subtotal,
		&bid.Taxes,
		&bid.Total,
		&bid.Notes,
		&bid.RevisedAt,
		&bid.Previous,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// CreateBid создает новое предложение. Повторное предложение того же исполнителя - конфликт.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	insertQuery := `INSERT INTO bid (id, event_id, vendor_id, status, items, subtotal, taxes, total, notes, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		bid.ID,
		bid.EventID,
		bid.VendorID,
		bid.Status,
		bid.Items,
		bid.Subtotal,
		bid.Taxes,
		bid.Total,
		bid.Notes,
		bid.CreatedAt,
		bid.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("vendor already has a bid on this event")
		}
		return dbError(err, "failed to create bid")
	}
	return nil
}

// GetBid возвращает предложение по ID.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE id = $1`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, bidId))
	if err != nil {
		return nil, mapNotFound(err, "bid")
	}
	return bid, nil
}

// GetVendorBid возвращает предложение исполнителя по мероприятию.
func (r *PostgresBidRepository) GetVendorBid(ctx context.Context, eventId, vendorId string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE event_id = $1 AND vendor_id = $2`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, eventId, vendorId))
	if err != nil {
		return nil, mapNotFound(err, "bid")
	}
	return bid, nil
}

// ListEventBids возвращает предложения мероприятия, при необходимости отфильтрованные по статусам.
func (r *PostgresBidRepository) ListEventBids(ctx context.Context, eventId string, statuses []models.BidStatus, limit, offset int) ([]models.Bid, error) {
	filters := []string{"event_id = $1"}
	args := []interface{}{eventId}
	argIndex := 2

	if len(statuses) > 0 {
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(bidStatusStrings(statuses)))
		argIndex++
	}

	query := `SELECT ` + bidColumns + ` FROM bid WHERE ` + strings.Join(filters, " AND ") + ` ORDER BY total, created_at`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, limit, offset)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to list bids")
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan bid")
		}
		bids = append(bids, *bid)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to list bids")
	}
	return bids, nil
}

// UpdateDraftBid перезаписывает черновик и переводит его в статус to, если он все еще черновик.
func (r *PostgresBidRepository) UpdateDraftBid(ctx context.Context, bid *models.Bid, to models.BidStatus) (bool, error) {
	updateQuery := `UPDATE bid
	                SET status = $1, items = $2, subtotal = $3, taxes = $4, total = $5, notes = $6, updated_at = $7
	                WHERE id = $8 AND status = $9`
	tag, err := r.DB.Exec(ctx, updateQuery,
		to, bid.Items, bid.Subtotal, bid.Taxes, bid.Total, bid.Notes, bid.UpdatedAt,
		bid.ID, models.DraftBid)
	if err != nil {
		return false, dbError(err, "failed to update draft bid")
	}
	return tag.RowsAffected() == 1, nil
}

// ReviseBid сохраняет единственный пересмотр предложения из шорт-листа.
func (r *PostgresBidRepository) ReviseBid(ctx context.Context, bid *models.Bid, previous *models.BidSnapshot) (bool, error) {
	updateQuery := `UPDATE bid
	                SET items = $1, subtotal = $2, taxes = $3, total = $4, notes = $5, previous = $6, revised_at = $7, updated_at = $7
	                WHERE id = $8 AND status = $9 AND revised_at IS NULL`
	tag, err := r.DB.Exec(ctx, updateQuery,
		bid.Items, bid.Subtotal, bid.Taxes, bid.Total, bid.Notes, previous, bid.RevisedAt,
		bid.ID, models.ShortlistedBid)
	if err != nil {
		return false, dbError(err, "failed to revise bid")
	}
	return tag.RowsAffected() == 1, nil
}
