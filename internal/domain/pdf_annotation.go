package domain

import (
	"fmt"
	"time"
)

// AnnotationStatus - метка аннотации. Переходы между статусами не ограничены.
type AnnotationStatus string

const (
	StatusNewComment     AnnotationStatus = "new_comment"
	StatusActionRequired AnnotationStatus = "action_required"
	StatusRejected       AnnotationStatus = "rejected"
	StatusNewReview      AnnotationStatus = "new_review"
	StatusOtherForum     AnnotationStatus = "other_forum"
	StatusResolved       AnnotationStatus = "resolved"
)

// Канонические цвета статусов
const (
	ColorBlue   = "#3B82F6"
	ColorGreen  = "#22C55E"
	ColorRed    = "#EF4444"
	ColorYellow = "#EAB308"
)

var statusColors = map[AnnotationStatus]string{
	StatusNewComment:     ColorBlue,
	StatusResolved:       ColorGreen,
	StatusActionRequired: ColorRed,
	StatusRejected:       ColorRed,
	StatusNewReview:      ColorYellow,
	StatusOtherForum:     ColorYellow,
}

// Statuses перечисляет все статусы в порядке отображения
func Statuses() []AnnotationStatus {
	return []AnnotationStatus{
		StatusNewComment,
		StatusActionRequired,
		StatusRejected,
		StatusNewReview,
		StatusOtherForum,
		StatusResolved,
	}
}

func (s AnnotationStatus) Valid() bool {
	_, ok := statusColors[s]
	return ok
}

// Color возвращает канонический цвет статуса. Для неизвестного статуса - цвет new_comment.
func (s AnnotationStatus) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return ColorBlue
}

func ParseStatus(raw string) (AnnotationStatus, error) {
	s := AnnotationStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Rect - положение аннотации в немасштабированных координатах страницы
type Rect struct {
	X          float64 `json:"x" validate:"gte=0"`
	Y          float64 `json:"y" validate:"gte=0"`
	Width      float64 `json:"width" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
	PageNumber int     `json:"pageNumber" validate:"min=1"`
}

// PdfAnnotation - позиционированная пометка на странице версии.
// AssignedTo и TaskID сериализуются явным null.
type PdfAnnotation struct {
	ID           int64            `json:"id"`
	PdfVersionID int64            `json:"pdfVersionId"`
	ProjectID    *int64           `json:"projectId"`
	Rect         Rect             `json:"rect"`
	Color        string           `json:"color"`
	Comment      string           `json:"comment"`
	Status       AnnotationStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	CreatedByID  string           `json:"createdById"`
	AssignedTo   *string          `json:"assignedTo"`
	TaskID       *int64           `json:"taskId"`
	Deadline     *time.Time       `json:"deadline"`
}
