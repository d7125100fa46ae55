package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArtifactStore хранит отрендеренные документы договоров.
type PostgresArtifactStore struct {
	DB *pgxpool.Pool
}

// NewPostgresArtifactStore создает новый экземпляр PostgresArtifactStore.
func NewPostgresArtifactStore(db *pgxpool.Pool) *PostgresArtifactStore {
	return &PostgresArtifactStore{DB: db}
}

// PutArtifact сохраняет документ. Повторная запись того же ключа с тем же содержимым ничего не меняет.
func (s *PostgresArtifactStore) PutArtifact(ctx context.Context, key, contentType string, body []byte, sha string) error {
	insertQuery := `INSERT INTO contract_artifact (key, content_type, body, sha256)
	                VALUES ($1, $2, $3, $4)
	                ON CONFLICT (key) DO NOTHING`
	if _, err := s.DB.Exec(ctx, insertQuery, key, contentType, body, sha); err != nil {
		return dbError(err, "failed to store contract artifact")
	}
	return nil
}

// GetArtifact возвращает содержимое документа по ключу.
func (s *PostgresArtifactStore) GetArtifact(ctx context.Context, key string) (string, []byte, error) {
	var (
		contentType string
		body        []byte
	)
	query := `SELECT content_type, body FROM contract_artifact WHERE key = $1`
	if err := s.DB.QueryRow(ctx, query, key).Scan(&contentType, &body); err != nil {
		return "", nil, mapNotFound(err, "contract artifact")
	}
	return contentType, body, nil
}
