package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"stargate/internal/domain"
	"stargate/internal/service"
)

type AnnotationService interface {
	ListAnnotations(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error)
	GetAnnotation(ctx context.Context, id int64) (*domain.PdfAnnotation, error)
	CreateAnnotation(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error)
	UpdateAnnotation(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error)
	DeleteAnnotation(ctx context.Context, id int64) (int64, error)
}

type Promoter interface {
	PromoteToTask(ctx context.Context, annotationID int64, actorID string) (*service.PromotionResult, error)
}

type AnnotationHandler struct {
	annotations AnnotationService
	promoter    Promoter
}

func NewAnnotationHandler(annotations AnnotationService, promoter Promoter) *AnnotationHandler {
	return &AnnotationHandler{annotations: annotations, promoter: promoter}
}

type deleteResponse struct {
	Success   bool  `json:"success"`
	VersionID int64 `json:"versionId"`
}

func (h *AnnotationHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	versionID, err := IDParam(r, "versionID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	annotations, err := h.annotations.ListAnnotations(r.Context(), versionID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if annotations == nil {
		annotations = []domain.PdfAnnotation{}
	}

	writeJSON(w, http.StatusOK, annotations)
}

// CreateAnnotation создает аннотацию на версии из URL; автор берётся из токена
func (h *AnnotationHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	versionID, err := IDParam(r, "versionID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var in domain.AnnotationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, r, asInvalid(err))
		return
	}
	if in.PdfVersionID != 0 && in.PdfVersionID != versionID {
		WriteError(w, r, fmt.Errorf("%w: pdfVersionId %d does not match version %d", domain.ErrInvalidInput, in.PdfVersionID, versionID))
		return
	}
	in.PdfVersionID = versionID
	in.CreatedByID = userID

	annotation, err := h.annotations.CreateAnnotation(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, annotation)
}

func (h *AnnotationHandler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	annotation, err := h.annotations.GetAnnotation(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, annotation)
}

// UpdateAnnotation - частичное обновление, для PATCH и PUT одинаковое
func (h *AnnotationHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var patch domain.AnnotationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, r, asInvalid(err))
		return
	}

	annotation, err := h.annotations.UpdateAnnotation(r.Context(), id, patch)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, annotation)
}

func (h *AnnotationHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	versionID, err := h.annotations.DeleteAnnotation(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Success: true, VersionID: versionID})
}

// PromoteToTask создает задачу из аннотации. Неудачная запись ссылки
// возвращается как 200 с orphaned: true.
func (h *AnnotationHandler) PromoteToTask(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.promoter.PromoteToTask(r.Context(), id, userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// asInvalid помечает ошибки разбора тела как ErrInvalidInput
func asInvalid(err error) error {
	if StatusFor(err) == http.StatusBadRequest {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
