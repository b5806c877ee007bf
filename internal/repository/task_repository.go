package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"stargate/internal/domain"
)

// TaskRepository - минимальная точка входа в трекер задач: только создание
type TaskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, in domain.TaskInput) (*domain.Task, error) {
	task := domain.Task{
		Title:              in.Title,
		Description:        in.Description,
		ProjectID:          in.ProjectID,
		SourceAnnotationID: &in.SourceAnnotationID,
		CreatedByID:        in.CreatedByID,
	}

	query := `
        INSERT INTO tasks (title, description, project_id, source_annotation_id, created_by_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		task.Title,
		task.Description,
		task.ProjectID,
		in.SourceAnnotationID,
		task.CreatedByID,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &task, nil
}
