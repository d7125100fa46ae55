package repository

import (
	"context"
	"time"

	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// EventRepository - интерфейс для работы с мероприятиями.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, eventId string) (*models.Event, error)
	UpdateEventStatus(ctx context.Context, eventId string, from, to models.ForgeStatus) (bool, error)
	SaveShortlist(ctx context.Context, eventId string, from models.ForgeStatus, bidIds []string, shortlist models.ShortlistData) (bool, error)
	DesignateWinner(ctx context.Context, eventId, bidId string, from models.ForgeStatus, eligible []models.BidStatus) (bool, error)
}

// PostgresEventRepository - реализация EventRepository для базы данных.
type PostgresEventRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresEventRepository создает новый экземпляр PostgresEventRepository.
func NewPostgresEventRepository(db *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{DB: db}
}

const eventColumns = `id, owner_id, forge_status, client_brief, blueprint, bidding_deadline,
	winner_bid_id, floor_price, revision_deadline, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		event            models.Event
		floorPrice       decimal.NullDecimal
		revisionDeadline *time.Time
	)
	err := row.Scan(
		&event.ID,
		&event.OwnerID,
		&event.Status,
		&event.ClientBrief,
		&event.Blueprint,
		&event.BiddingDeadline,
		&event.WinnerBidID,
		&floorPrice,
		&revisionDeadline,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if floorPrice.Valid && revisionDeadline != nil {
		event.Shortlist = &models.ShortlistData{FloorPrice: floorPrice.Decimal, RevisionDeadline: *revisionDeadline}
	}
	return &event, nil
}

// CreateEvent сохраняет новое мероприятие.
func (r *PostgresEventRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	insertQuery := `INSERT INTO event (id, owner_id, forge_status, client_brief, blueprint, bidding_deadline, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		event.ID,
		event.OwnerID,
		event.Status,
		event.ClientBrief,
		event.Blueprint,
		event.BiddingDeadline,
		event.CreatedAt,
		event.UpdatedAt)
	if err != nil {
		return dbError(err, "failed to create event")
	}
	return nil
}

// GetEvent возвращает мероприятие по ID.
func (r *PostgresEventRepository) GetEvent(ctx context.Context, eventId string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event WHERE id = $1`
	event, err := scanEvent(r.DB.QueryRow(ctx, query, eventId))
	if err != nil {
		return nil, mapNotFound(err, "event")
	}
	return event, nil
}

// UpdateEventStatus меняет статус мероприятия, только если текущий статус равен from.
func (r *PostgresEventRepository) UpdateEventStatus(ctx context.Context, eventId string, from, to models.ForgeStatus) (bool, error) {
	return updateEventStatus(ctx, r.DB, eventId, []models.ForgeStatus{from}, to)
}

func updateEventStatus(ctx context.Context, q querier, eventId string, from []models.ForgeStatus, to models.ForgeStatus) (bool, error) {
	updateQuery := `UPDATE event SET forge_status = $1, updated_at = now() WHERE id = $2 AND forge_status = ANY($3)`
	tag, err := q.Exec(ctx, updateQuery, to, eventId, pq.Array(forgeStatusStrings(from)))
	if err != nil {
		return false, dbError(err, "failed to update event status")
	}
	return tag.RowsAffected() == 1, nil
}

// SaveShortlist переводит мероприятие в SHORTLIST_REVIEW, отмечает выбранные предложения
// и отклоняет остальные поданные, одной транзакцией.
func (r *PostgresEventRepository) SaveShortlist(ctx context.Context, eventId string, from models.ForgeStatus, bidIds []string, shortlist models.ShortlistData) (bool, error) {
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		eventQuery := `UPDATE event
		               SET forge_status = $1, floor_price = $2, revision_deadline = $3, updated_at = now()
		               WHERE id = $4 AND forge_status = $5`
		tag, err := tx.Exec(ctx, eventQuery, models.ShortlistReview, shortlist.FloorPrice, shortlist.RevisionDeadline, eventId, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errRollback
		}

		shortlistQuery := `UPDATE bid SET status = $1, updated_at = now()
		                   WHERE event_id = $2 AND status = $3 AND id = ANY($4)`
		tag, err = tx.Exec(ctx, shortlistQuery, models.ShortlistedBid, eventId, models.SubmittedBid, pq.Array(bidIds))
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(bidIds)) {
			return errRollback
		}

		rejectQuery := `UPDATE bid SET status = $1, updated_at = now()
		                WHERE event_id = $2 AND status = $3 AND NOT (id = ANY($4))`
		_, err = tx.Exec(ctx, rejectQuery, models.RejectedBid, eventId, models.SubmittedBid, pq.Array(bidIds))
		return err
	})
	return finishTx(err, "failed to save shortlist")
}

// DesignateWinner фиксирует победителя, принимает его предложение и отклоняет остальные.
func (r *PostgresEventRepository) DesignateWinner(ctx context.Context, eventId, bidId string, from models.ForgeStatus, eligible []models.BidStatus) (bool, error) {
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		eventQuery := `UPDATE event SET winner_bid_id = $1, forge_status = $2, updated_at = now()
		               WHERE id = $3 AND forge_status = $4 AND winner_bid_id IS NULL`
		tag, err := tx.Exec(ctx, eventQuery, bidId, models.WinnerSelected, eventId, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errRollback
		}

		acceptQuery := `UPDATE bid SET status = $1, updated_at = now()
		                WHERE id = $2 AND event_id = $3 AND status = ANY($4)`
		tag, err = tx.Exec(ctx, acceptQuery, models.AcceptedBid, bidId, eventId, pq.Array(bidStatusStrings(eligible)))
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errRollback
		}

		rejectQuery := `UPDATE bid SET status = $1, updated_at = now()
		                WHERE event_id = $2 AND id <> $3 AND status IN ($4, $5)`
		_, err = tx.Exec(ctx, rejectQuery, models.RejectedBid, eventId, bidId, models.SubmittedBid, models.ShortlistedBid)
		return err
	})
	return finishTx(err, "failed to designate winner")
}

func forgeStatusStrings(statuses []models.ForgeStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func bidStatusStrings(statuses []models.BidStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
