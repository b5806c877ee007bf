package service

import (
	"context"

	"stargate/internal/domain"
	"stargate/internal/logger"
)

// AnnotationRepository - хранилище аннотаций
type AnnotationRepository interface {
	ListByVersion(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error)
	GetByID(ctx context.Context, id int64) (*domain.PdfAnnotation, error)
	Create(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error)
	Update(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error)
	Delete(ctx context.Context, id int64) error
}

// VersionLookup проверяет существование версии
type VersionLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.PdfVersion, error)
}

type AnnotationService struct {
	repo     AnnotationRepository
	versions VersionLookup
}

func NewAnnotationService(repo AnnotationRepository, versions VersionLookup) *AnnotationService {
	return &AnnotationService{repo: repo, versions: versions}
}

// ListAnnotations - аннотации версии без гарантированного порядка
func (s *AnnotationService) ListAnnotations(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error) {
	return s.repo.ListByVersion(ctx, versionID)
}

func (s *AnnotationService) GetAnnotation(ctx context.Context, id int64) (*domain.PdfAnnotation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AnnotationService) CreateAnnotation(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.versions.GetByID(ctx, in.PdfVersionID); err != nil {
		return nil, err
	}

	a, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	logger.Sugar.Infof("[Annotations] Created annotation %d on version %d page %d", a.ID, a.PdfVersionID, a.Rect.PageNumber)
	return a, nil
}

// UpdateAnnotation - частичное обновление; смена статуса без цвета ставит цвет статуса
func (s *AnnotationService) UpdateAnnotation(ctx context.Context, id int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	patch.Normalize()

	return s.repo.Update(ctx, id, patch)
}

// DeleteAnnotation удаляет аннотацию и возвращает id её версии для инвалидации кэша
func (s *AnnotationService) DeleteAnnotation(ctx context.Context, id int64) (int64, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return 0, err
	}

	logger.Sugar.Infof("[Annotations] Deleted annotation %d from version %d", id, a.PdfVersionID)
	return a.PdfVersionID, nil
}
