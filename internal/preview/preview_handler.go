package preview

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stargate/internal/domain"
	"stargate/internal/handler"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetPreview отдаёт JPEG страницы версии
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	versionID, err := handler.IDParam(r, "versionID")
	if err != nil {
		handler.WriteError(w, r, err)
		return
	}

	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		handler.WriteError(w, r, fmt.Errorf("%w: invalid page", domain.ErrInvalidInput))
		return
	}

	previewData, err := h.service.GetOrGeneratePreview(r.Context(), versionID, page)
	if err != nil {
		handler.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400") // версии неизменяемы
	w.WriteHeader(http.StatusOK)
	w.Write(previewData)
}
