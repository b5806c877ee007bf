package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stargate/internal/domain"
)

// FileRepository читает записи файлов. Сами файлы создаёт внешняя подсистема.
type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) GetByID(ctx context.Context, id int64) (*domain.FileRecord, error) {
	var file domain.FileRecord
	query := `
        SELECT id, name, project_id, folder_id, uploaded_by, storage_path, uploaded_at
        FROM files
        WHERE id = $1`

	err := r.db.GetContext(ctx, &file, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

func (r *FileRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return exists, nil
}

// LockForUpdate блокирует строку файла до конца транзакции,
// сериализуя параллельное создание версий одного файла.
func (r *FileRepository) LockForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var lockedID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to lock file: %w", err)
	}
	return nil
}

func (r *FileRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
