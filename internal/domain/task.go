package domain

import "time"

// Task - запись внешнего трекера задач, создаётся при продвижении аннотации
type Task struct {
	ID                 int64     `json:"id" db:"id"`
	Title              string    `json:"title" db:"title"`
	Description        string    `json:"description" db:"description"`
	ProjectID          *int64    `json:"projectId,omitempty" db:"project_id"`
	SourceAnnotationID *int64    `json:"sourceAnnotationId,omitempty" db:"source_annotation_id"`
	CreatedByID        string    `json:"createdById" db:"created_by_id"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}

type TaskInput struct {
	Title              string
	Description        string
	ProjectID          *int64
	SourceAnnotationID int64
	CreatedByID        string
}
