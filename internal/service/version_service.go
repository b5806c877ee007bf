package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"stargate/internal/domain"
	"stargate/internal/logger"
	"stargate/internal/repository"
	"stargate/internal/storage"
)

const (
	maxVersionSize    = 100 * 1024 * 1024 // 100MB максимальный размер версии
	pdfContentType    = "application/pdf"
	versionKeyPrefix  = "pdf_versions"
	compensateTimeout = 30 * time.Second
)

var (
	errStorageOperation = errors.New("storage operation failed")
	pdfMagic            = []byte("%PDF-")
)

// ByteRange - диапазон байт [Start, End] включительно
type ByteRange struct {
	Start int64
	End   int64
}

// VersionContent - открытый поток бинарника версии
type VersionContent struct {
	Version *domain.PdfVersion
	Object  storage.Object
}

// VersionService - хранилище версий: метаданные в Postgres, бинарники в объектном хранилище
type VersionService struct {
	fileRepo    *repository.FileRepository
	versionRepo *repository.VersionRepository
	storage     storage.Storage
}

func NewVersionService(
	fileRepo *repository.FileRepository,
	versionRepo *repository.VersionRepository,
	storage storage.Storage,
) *VersionService {
	return &VersionService{
		fileRepo:    fileRepo,
		versionRepo: versionRepo,
		storage:     storage,
	}
}

// ListVersions возвращает версии файла по возрастанию номера.
// Несуществующий файл - ErrNotFound, файл без версий - пустой список.
func (s *VersionService) ListVersions(ctx context.Context, fileID int64) ([]domain.PdfVersion, error) {
	exists, err := s.fileRepo.Exists(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: file %d", domain.ErrNotFound, fileID)
	}

	return s.versionRepo.ListByFile(ctx, fileID)
}

func (s *VersionService) GetVersion(ctx context.Context, versionID int64) (*domain.PdfVersion, error) {
	return s.versionRepo.GetByID(ctx, versionID)
}

// CurrentVersion - версия с максимальным номером
func (s *VersionService) CurrentVersion(ctx context.Context, fileID int64) (*domain.PdfVersion, error) {
	return s.versionRepo.GetLatest(ctx, fileID)
}

// CreateVersion создает новую версию файла с номером max+1.
// Бинарник загружается до вставки записи; если запись не сохранилась, бинарник удаляется.
func (s *VersionService) CreateVersion(ctx context.Context, in domain.CreateVersionInput) (*domain.PdfVersion, error) {
	if err := validateVersionContent(in.Content); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.UploaderID) == "" {
		return nil, fmt.Errorf("%w: uploader is required", domain.ErrInvalidInput)
	}

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Строка файла блокируется до коммита: параллельные загрузки получают разные номера
	if err := s.fileRepo.LockForUpdate(ctx, tx, in.FileID); err != nil {
		return nil, err
	}

	next, err := s.versionRepo.NextVersionNumber(ctx, tx, in.FileID)
	if err != nil {
		return nil, err
	}

	key := versionObjectKey(in.FileID)
	if err := s.storage.Put(ctx, key, in.Content, pdfContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", errStorageOperation, err)
	}

	version := &domain.PdfVersion{
		FileID:        in.FileID,
		VersionNumber: next,
		FilePath:      key,
		Description:   optionalString(in.Description),
		UploadedByID:  in.UploaderID,
		Metadata:      versionMetadata(in),
	}

	if err := s.versionRepo.Create(ctx, tx, version); err != nil {
		s.discardObject(key)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.discardObject(key)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Sugar.Infof("[Versions] Created version %d for file %d (%d bytes)", version.VersionNumber, in.FileID, len(in.Content))
	return version, nil
}

// OpenVersionContent открывает бинарник версии, целиком или диапазон
func (s *VersionService) OpenVersionContent(ctx context.Context, versionID int64, rng *ByteRange) (*VersionContent, error) {
	version, err := s.versionRepo.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, version, rng)
}

// OpenFileContent открывает текущую версию файла. Файл без версий отдаётся
// из исходного пути загрузки.
func (s *VersionService) OpenFileContent(ctx context.Context, fileID int64, rng *ByteRange) (*VersionContent, error) {
	version, err := s.versionRepo.GetLatest(ctx, fileID)
	if err == nil {
		return s.open(ctx, version, rng)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	obj, err := s.openObject(ctx, file.StoragePath, rng)
	if err != nil {
		return nil, err
	}
	return &VersionContent{Object: obj}, nil
}

func (s *VersionService) open(ctx context.Context, version *domain.PdfVersion, rng *ByteRange) (*VersionContent, error) {
	obj, err := s.openObject(ctx, version.FilePath, rng)
	if err != nil {
		return nil, err
	}
	return &VersionContent{Version: version, Object: obj}, nil
}

func (s *VersionService) openObject(ctx context.Context, key string, rng *ByteRange) (storage.Object, error) {
	var (
		obj storage.Object
		err error
	)
	if rng != nil {
		obj, err = s.storage.GetRange(ctx, key, rng.Start, rng.End)
	} else {
		obj, err = s.storage.Get(ctx, key)
	}
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", errStorageOperation, err)
	}
	return obj, nil
}

// discardObject - компенсирующее удаление бинарника, запись о котором не сохранилась
func (s *VersionService) discardObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	if err := s.storage.Delete(ctx, key); err != nil {
		logger.Sugar.Errorf("[Versions] Failed to delete %s after version creation error: %v", key, err)
	}
}

func validateVersionContent(content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty content", domain.ErrInvalidInput)
	}
	if len(content) > maxVersionSize {
		return fmt.Errorf("%w: content exceeds %d bytes", domain.ErrInvalidInput, maxVersionSize)
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return fmt.Errorf("%w: content is not a PDF", domain.ErrInvalidInput)
	}
	return nil
}

func versionObjectKey(fileID int64) string {
	return fmt.Sprintf("%s/%d/%s.pdf", versionKeyPrefix, fileID, uuid.New().String())
}

func versionMetadata(in domain.CreateVersionInput) types.JSONText {
	meta := map[string]any{
		"sizeBytes":   len(in.Content),
		"contentType": pdfContentType,
	}
	if in.Filename != "" {
		meta["filename"] = filepath.Base(in.Filename)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return types.JSONText(`{}`)
	}
	return types.JSONText(data)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
