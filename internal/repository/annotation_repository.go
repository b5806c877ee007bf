package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"stargate/internal/domain"
)

const annotationColumns = `id, pdf_version_id, project_id, rect_x, rect_y, rect_width, rect_height, page_number,
        color, comment, status, created_at, created_by_id, assigned_to, task_id, deadline`

// annotationRow - плоское представление строки pdf_annotations
type annotationRow struct {
	ID           int64      `db:"id"`
	PdfVersionID int64      `db:"pdf_version_id"`
	ProjectID    *int64     `db:"project_id"`
	RectX        float64    `db:"rect_x"`
	RectY        float64    `db:"rect_y"`
	RectWidth    float64    `db:"rect_width"`
	RectHeight   float64    `db:"rect_height"`
	PageNumber   int        `db:"page_number"`
	Color        string     `db:"color"`
	Comment      string     `db:"comment"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	CreatedByID  string     `db:"created_by_id"`
	AssignedTo   *string    `db:"assigned_to"`
	TaskID       *int64     `db:"task_id"`
	Deadline     *time.Time `db:"deadline"`
}

func (row annotationRow) toDomain() domain.PdfAnnotation {
	return domain.PdfAnnotation{
		ID:           row.ID,
		PdfVersionID: row.PdfVersionID,
		ProjectID:    row.ProjectID,
		Rect: domain.Rect{
			X:          row.RectX,
			Y:          row.RectY,
			Width:      row.RectWidth,
			Height:     row.RectHeight,
			PageNumber: row.PageNumber,
		},
		Color:       row.Color,
		Comment:     row.Comment,
		Status:      domain.AnnotationStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		CreatedByID: row.CreatedByID,
		AssignedTo:  row.AssignedTo,
		TaskID:      row.TaskID,
		Deadline:    row.Deadline,
	}
}

type AnnotationRepository struct {
	db *sqlx.DB
}

func NewAnnotationRepository(db *sqlx.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func (r *AnnotationRepository) ListByVersion(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error) {
	var rows []annotationRow
	query := `SELECT ` + annotationColumns + ` FROM pdf_annotations WHERE pdf_version_id = $1`

	if err := r.db.SelectContext(ctx, &rows, query, versionID); err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}

	annotations := make([]domain.PdfAnnotation, 0, len(rows))
	for _, row := range rows {
		annotations = append(annotations, row.toDomain())
	}
	return annotations, nil
}

func (r *AnnotationRepository) GetByID(ctx context.Context, id int64) (*domain.PdfAnnotation, error) {
	var row annotationRow
	query := `SELECT ` + annotationColumns + ` FROM pdf_annotations WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

// Create сохраняет аннотацию; id и created_at назначает база
func (r *AnnotationRepository) Create(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error) {
	var row annotationRow
	query := `
        INSERT INTO pdf_annotations (
            pdf_version_id, project_id, rect_x, rect_y, rect_width, rect_height, page_number,
            color, comment, status, created_by_id, assigned_to, task_id, deadline
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING ` + annotationColumns

	err := r.db.GetContext(ctx, &row, query,
		in.PdfVersionID,
		in.ProjectID,
		in.Rect.X,
		in.Rect.Y,
		in.Rect.Width,
		in.Rect.Height,
		in.Rect.PageNumber,
		in.Color,
		in.Comment,
		string(in.Status),
		in.CreatedByID,
		in.AssignedTo,
		in.TaskID,
		in.Deadline,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

// Update обновляет только переданные в патче поля
func (r *AnnotationRepository) Update(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Rect != nil {
		set("rect_x", patch.Rect.X)
		set("rect_y", patch.Rect.Y)
		set("rect_width", patch.Rect.Width)
		set("rect_height", patch.Rect.Height)
		set("page_number", patch.Rect.PageNumber)
	}
	if patch.Color != nil {
		set("color", *patch.Color)
	}
	if patch.Comment != nil {
		set("comment", *patch.Comment)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.ProjectID.Set {
		set("project_id", patch.ProjectID.Value)
	}
	if patch.AssignedTo.Set {
		set("assigned_to", patch.AssignedTo.Value)
	}
	if patch.TaskID.Set {
		set("task_id", patch.TaskID.Value)
	}
	if patch.Deadline.Set {
		set("deadline", patch.Deadline.Value)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE pdf_annotations SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), annotationColumns)

	var row annotationRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update annotation: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

func (r *AnnotationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pdf_annotations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	return nil
}
