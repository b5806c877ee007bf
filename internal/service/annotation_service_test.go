package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stargate/internal/domain"
)

// fakeAnnotationRepo - хранилище аннотаций в памяти
type fakeAnnotationRepo struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]domain.PdfAnnotation
	updateErr error
}

func newFakeAnnotationRepo() *fakeAnnotationRepo {
	return &fakeAnnotationRepo{nextID: 1, items: make(map[int64]domain.PdfAnnotation)}
}

func (r *fakeAnnotationRepo) ListByVersion(_ context.Context, versionID int64) ([]domain.PdfAnnotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.PdfAnnotation{}
	for _, a := range r.items {
		if a.PdfVersionID == versionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAnnotationRepo) GetByID(_ context.Context, id int64) (*domain.PdfAnnotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	return &a, nil
}

func (r *fakeAnnotationRepo) Create(_ context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := domain.PdfAnnotation{
		ID:           r.nextID,
		PdfVersionID: in.PdfVersionID,
		ProjectID:    in.ProjectID,
		Rect:         *in.Rect,
		Color:        in.Color,
		Comment:      in.Comment,
		Status:       in.Status,
		CreatedAt:    time.Now().UTC(),
		CreatedByID:  in.CreatedByID,
		AssignedTo:   in.AssignedTo,
		TaskID:       in.TaskID,
		Deadline:     in.Deadline,
	}
	r.items[a.ID] = a
	r.nextID++
	return &a, nil
}

func (r *fakeAnnotationRepo) Update(_ context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	a, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	patch.Apply(&a)
	r.items[id] = a
	return &a, nil
}

func (r *fakeAnnotationRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: annotation %d", domain.ErrNotFound, id)
	}
	delete(r.items, id)
	return nil
}

type fakeVersions map[int64]domain.PdfVersion

func (f fakeVersions) GetByID(_ context.Context, id int64) (*domain.PdfVersion, error) {
	v, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	return &v, nil
}

func newAnnotationService() (*AnnotationService, *fakeAnnotationRepo) {
	repo := newFakeAnnotationRepo()
	versions := fakeVersions{1: {ID: 1, FileID: 42, VersionNumber: 1}}
	return NewAnnotationService(repo, versions), repo
}

func sampleInput() domain.AnnotationInput {
	return domain.AnnotationInput{
		PdfVersionID: 1,
		Rect:         &domain.Rect{X: 10, Y: 10, Width: 50, Height: 20, PageNumber: 2},
		Comment:      "check tolerance",
		CreatedByID:  "u-1",
	}
}

func TestAnnotationService_CreateThenList(t *testing.T) {
	svc, _ := newAnnotationService()
	ctx := context.Background()

	created, err := svc.CreateAnnotation(ctx, sampleInput())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, domain.StatusNewComment, created.Status)
	assert.Equal(t, domain.StatusNewComment.Color(), created.Color)

	list, err := svc.ListAnnotations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.Rect{X: 10, Y: 10, Width: 50, Height: 20, PageNumber: 2}, got.Rect)
	assert.Equal(t, "check tolerance", got.Comment)
	assert.Nil(t, got.TaskID)
	assert.Nil(t, got.AssignedTo)
}

func TestAnnotationService_CreateValidation(t *testing.T) {
	svc, repo := newAnnotationService()
	ctx := context.Background()

	in := sampleInput()
	in.Rect = nil
	_, err := svc.CreateAnnotation(ctx, in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = sampleInput()
	in.PdfVersionID = 99
	_, err = svc.CreateAnnotation(ctx, in)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, repo.items)
}

func TestAnnotationService_UpdateStatusSetsCanonicalColor(t *testing.T) {
	svc, _ := newAnnotationService()
	ctx := context.Background()

	created, err := svc.CreateAnnotation(ctx, sampleInput())
	require.NoError(t, err)

	resolved := domain.StatusResolved
	_, err = svc.UpdateAnnotation(ctx, created.ID, domain.AnnotationPatch{Status: &resolved})
	require.NoError(t, err)

	list, err := svc.ListAnnotations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusResolved, list[0].Status)
	assert.Equal(t, domain.StatusResolved.Color(), list[0].Color)
	assert.Equal(t, "check tolerance", list[0].Comment)
}

func TestAnnotationService_UpdateStatusWithColorOverride(t *testing.T) {
	svc, _ := newAnnotationService()
	ctx := context.Background()

	created, err := svc.CreateAnnotation(ctx, sampleInput())
	require.NoError(t, err)

	rejected := domain.StatusRejected
	purple := "#7C3AED"
	updated, err := svc.UpdateAnnotation(ctx, created.ID, domain.AnnotationPatch{Status: &rejected, Color: &purple})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)
	assert.Equal(t, purple, updated.Color)
}

func TestAnnotationService_UpdateMissing(t *testing.T) {
	svc, _ := newAnnotationService()
	comment := "x"
	_, err := svc.UpdateAnnotation(context.Background(), 404, domain.AnnotationPatch{Comment: &comment})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnnotationService_Delete(t *testing.T) {
	svc, _ := newAnnotationService()
	ctx := context.Background()

	created, err := svc.CreateAnnotation(ctx, sampleInput())
	require.NoError(t, err)

	versionID, err := svc.DeleteAnnotation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), versionID)

	_, err = svc.DeleteAnnotation(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
