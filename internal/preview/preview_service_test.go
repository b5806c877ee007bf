package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/domain"
	"stargate/internal/service"
	"stargate/internal/storage"
)

var samplePDF = []byte("%PDF-1.7\n%%EOF")

type memoryContent struct {
	mem    *storage.Memory
	opened int
}

func (c *memoryContent) OpenVersionContent(ctx context.Context, versionID int64, _ *service.ByteRange) (*service.VersionContent, error) {
	c.opened++
	obj, err := c.mem.Get(ctx, fmt.Sprintf("pdf_versions/%d.pdf", versionID))
	if err != nil {
		return nil, fmt.Errorf("%w: version %d", domain.ErrNotFound, versionID)
	}
	return &service.VersionContent{Object: obj}, nil
}

func newTestService(t *testing.T) (*Service, *storage.Memory, *memoryContent, *int) {
	t.Helper()
	mem := storage.NewMemory()
	require.NoError(t, mem.Put(context.Background(), "pdf_versions/5.pdf", samplePDF, "application/pdf"))
	content := &memoryContent{mem: mem}

	renders := 0
	svc := NewService(mem, content)
	svc.render = func(_ context.Context, pdf []byte, page int) ([]byte, error) {
		renders++
		if page > 3 {
			return nil, fmt.Errorf("%w: page %d", domain.ErrNotFound, page)
		}
		return []byte(fmt.Sprintf("jpeg:%d:%d", len(pdf), page)), nil
	}
	return svc, mem, content, &renders
}

func TestGetOrGeneratePreview_CachesResult(t *testing.T) {
	svc, mem, content, renders := newTestService(t)
	ctx := context.Background()

	data, err := svc.GetOrGeneratePreview(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:14:2", string(data))
	assert.Equal(t, 1, *renders)

	obj, err := mem.Get(ctx, "previews/5_p2.jpg")
	require.NoError(t, err)
	cached, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, data, cached)

	data, err = svc.GetOrGeneratePreview(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:14:2", string(data))
	assert.Equal(t, 1, *renders)
	assert.Equal(t, 1, content.opened)
}

func TestGetOrGeneratePreview_Errors(t *testing.T) {
	svc, _, _, renders := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrGeneratePreview(ctx, 5, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetOrGeneratePreview(ctx, 99, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, *renders)

	_, err = svc.GetOrGeneratePreview(ctx, 5, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPreviewHandler(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Get("/v1/versions/{versionID}/pages/{page}/preview", h.GetPreview)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/versions/5/pages/1/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg:14:1", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/versions/5/pages/x/preview", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/versions/5/pages/7/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculateNewDimensions(t *testing.T) {
	w, h := calculateNewDimensions(2048, 1024, 1024)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 512, h)

	w, h = calculateNewDimensions(600, 2400, 1024)
	assert.Equal(t, 256, w)
	assert.Equal(t, 1024, h)

	w, h = calculateNewDimensions(300, 200, 1024)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestPreviewKey(t *testing.T) {
	assert.Equal(t, "previews/12_p3.jpg", previewKey(12, 3))
}
