package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"stargate/internal/domain"
	"stargate/internal/logger"
)

const maxTaskTitleLength = 80

// TaskCreator - внешний трекер задач
type TaskCreator interface {
	CreateTask(ctx context.Context, in domain.TaskInput) (*domain.Task, error)
}

// AnnotationStore - операции над аннотациями, нужные мосту
type AnnotationStore interface {
	GetAnnotation(ctx context.Context, id int64) (*domain.PdfAnnotation, error)
	UpdateAnnotation(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error)
}

type PromotionResult struct {
	Annotation *domain.PdfAnnotation `json:"annotation"`
	TaskID     int64                 `json:"taskId"`
	// Orphaned - задача создана, но ссылка на неё не записана в аннотацию
	Orphaned bool `json:"orphaned"`
}

type PromotionService struct {
	annotations AnnotationStore
	tasks       TaskCreator
}

func NewPromotionService(annotations AnnotationStore, tasks TaskCreator) *PromotionService {
	return &PromotionService{annotations: annotations, tasks: tasks}
}

// PromoteToTask создает задачу из аннотации и записывает taskId обратно.
// Ошибка создания задачи прерывает операцию; ошибка записи ссылки только логируется.
func (s *PromotionService) PromoteToTask(ctx context.Context, annotationID int64, actorID string) (*PromotionResult, error) {
	a, err := s.annotations.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.CreateTask(ctx, domain.TaskInput{
		Title:              taskTitle(a),
		Description:        fmt.Sprintf("%s\n\nPage %d", strings.TrimSpace(a.Comment), a.Rect.PageNumber),
		ProjectID:          a.ProjectID,
		SourceAnnotationID: a.ID,
		CreatedByID:        actorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task for annotation %d: %w", annotationID, err)
	}

	updated, err := s.annotations.UpdateAnnotation(ctx, annotationID, domain.AnnotationPatch{
		TaskID: domain.Some(task.ID),
	})
	if err != nil {
		orphan := fmt.Errorf("%w: task %d, annotation %d: %v", domain.ErrOrphanedLink, task.ID, annotationID, err)
		logger.Sugar.Errorf("[Promotion] %v", orphan)
		return &PromotionResult{Annotation: a, TaskID: task.ID, Orphaned: true}, nil
	}

	logger.Sugar.Infof("[Promotion] Annotation %d promoted to task %d", annotationID, task.ID)
	return &PromotionResult{Annotation: updated, TaskID: task.ID}, nil
}

// taskTitle - первая строка комментария, не длиннее maxTaskTitleLength символов
func taskTitle(a *domain.PdfAnnotation) string {
	title := strings.TrimSpace(a.Comment)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title == "" {
		return fmt.Sprintf("Annotation #%d (page %d)", a.ID, a.Rect.PageNumber)
	}
	if utf8.RuneCountInString(title) > maxTaskTitleLength {
		runes := []rune(title)
		title = string(runes[:maxTaskTitleLength-1]) + "…"
	}
	return title
}
