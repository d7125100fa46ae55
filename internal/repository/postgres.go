package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/forge-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// querier - общий набор методов пула соединений и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// errRollback прерывает транзакцию, когда условное обновление не затронуло строк.
var errRollback = errors.New("conditional update matched no rows")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapNotFound превращает pgx.ErrNoRows в ошибку NotFound, остальное - в DatabaseError.
func mapNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFoundError("%s not found", what)
	}
	return dbError(err, "failed to load "+what)
}

func dbError(err error, message string) error {
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		return err
	}
	return models.NewDatabaseError(message, err)
}

// finishTx отделяет откат из-за устаревшего статуса от настоящей ошибки.
func finishTx(err error, message string) (bool, error) {
	if errors.Is(err, errRollback) {
		return false, nil
	}
	if err != nil {
		return false, dbError(err, message)
	}
	return true, nil
}
