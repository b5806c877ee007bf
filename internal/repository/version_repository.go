package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"stargate/internal/domain"
)

const pgUniqueViolationCode = "23505"

const versionColumns = `id, file_id, version_number, file_path, description, uploaded_at, uploaded_by_id, metadata`

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// ListByFile возвращает версии файла по возрастанию номера
func (r *VersionRepository) ListByFile(ctx context.Context, fileID int64) ([]domain.PdfVersion, error) {
	versions := []domain.PdfVersion{}
	query := `SELECT ` + versionColumns + `
        FROM pdf_versions
        WHERE file_id = $1
        ORDER BY version_number ASC`

	if err := r.db.SelectContext(ctx, &versions, query, fileID); err != nil {
		return nil, fmt.Errorf("failed to get file versions: %w", err)
	}
	return versions, nil
}

func (r *VersionRepository) GetByID(ctx context.Context, id int64) (*domain.PdfVersion, error) {
	var version domain.PdfVersion
	query := `SELECT ` + versionColumns + ` FROM pdf_versions WHERE id = $1`

	err := r.db.GetContext(ctx, &version, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &version, nil
}

// GetLatest - текущая версия файла, вычисляется при каждом чтении
func (r *VersionRepository) GetLatest(ctx context.Context, fileID int64) (*domain.PdfVersion, error) {
	var version domain.PdfVersion
	query := `SELECT ` + versionColumns + `
        FROM pdf_versions
        WHERE file_id = $1
        ORDER BY version_number DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &version, query, fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %d has no versions", domain.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}
	return &version, nil
}

// NextVersionNumber вычисляет max+1 внутри транзакции
func (r *VersionRepository) NextVersionNumber(ctx context.Context, tx *sqlx.Tx, fileID int64) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM pdf_versions WHERE file_id = $1`
	if err := tx.QueryRowContext(ctx, query, fileID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next version number: %w", err)
	}
	return next, nil
}

func (r *VersionRepository) Create(ctx context.Context, tx *sqlx.Tx, version *domain.PdfVersion) error {
	query := `
        INSERT INTO pdf_versions (file_id, version_number, file_path, description, uploaded_by_id, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, uploaded_at`

	err := tx.QueryRowContext(ctx, query,
		version.FileID,
		version.VersionNumber,
		version.FilePath,
		version.Description,
		version.UploadedByID,
		version.Metadata,
	).Scan(&version.ID, &version.UploadedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolationCode {
			return fmt.Errorf("%w: file %d version %d", domain.ErrVersionConflict, version.FileID, version.VersionNumber)
		}
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}
