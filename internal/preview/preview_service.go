package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/h2non/bimg"

	"stargate/internal/domain"
	"stargate/internal/logger"
	"stargate/internal/service"
	"stargate/internal/storage"
)

const (
	maxImageSize  = 1024        // максимальный размер превью в пикселях
	jpegQuality   = 85          // качество JPEG
	previewPrefix = "previews/" // префикс для превью в хранилище
	renderTimeout = 60 * time.Second
)

// ContentSource открывает бинарник версии
type ContentSource interface {
	OpenVersionContent(ctx context.Context, versionID int64, rng *service.ByteRange) (*service.VersionContent, error)
}

// RenderFunc превращает страницу PDF в JPEG
type RenderFunc func(ctx context.Context, pdf []byte, page int) ([]byte, error)

// Service строит превью страниц версии. Версии неизменяемы,
// поэтому готовое превью кэшируется в хранилище без инвалидации.
type Service struct {
	storage storage.Storage
	content ContentSource
	render  RenderFunc
}

func NewService(storage storage.Storage, content ContentSource) *Service {
	return &Service{
		storage: storage,
		content: content,
		render:  renderPage,
	}
}

// GetOrGeneratePreview возвращает JPEG страницы page версии versionID
func (s *Service) GetOrGeneratePreview(ctx context.Context, versionID int64, page int) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", domain.ErrInvalidInput)
	}

	key := previewKey(versionID, page)
	if cached, err := s.readCached(ctx, key); err == nil {
		logger.Sugar.Debugf("[Preview] Found cached preview %s", key)
		return cached, nil
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		logger.Sugar.Warnf("[Preview] Failed to read cached preview %s: %v", key, err)
	}

	content, err := s.content.OpenVersionContent(ctx, versionID, nil)
	if err != nil {
		return nil, err
	}
	defer content.Object.Close()

	pdf, err := io.ReadAll(content.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to read version %d: %w", versionID, err)
	}

	logger.Sugar.Infof("[Preview] Generating preview for version %d page %d (%d bytes)", versionID, page, len(pdf))
	data, err := s.render(ctx, pdf, page)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Put(ctx, key, data, "image/jpeg"); err != nil {
		logger.Sugar.Warnf("[Preview] Failed to save preview %s: %v", key, err)
	}
	return data, nil
}

func (s *Service) readCached(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func previewKey(versionID int64, page int) string {
	return fmt.Sprintf("%s%d_p%d.jpg", previewPrefix, versionID, page)
}

// renderPage конвертирует страницу через pdftoppm и ужимает результат bimg
func renderPage(ctx context.Context, pdf []byte, page int) ([]byte, error) {
	tmpPath, err := os.MkdirTemp("", "preview_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	pdfPath := filepath.Join(tmpPath, "input.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return nil, fmt.Errorf("failed to write PDF file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	outputPath := filepath.Join(tmpPath, "output")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-scale-to", strconv.Itoa(maxImageSize),
		"-singlefile",
		pdfPath,
		outputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if bytes.Contains(out, []byte("Wrong page range")) {
			return nil, fmt.Errorf("%w: page %d", domain.ErrNotFound, page)
		}
		return nil, fmt.Errorf("failed to convert PDF: %w: %s", err, bytes.TrimSpace(out))
	}

	imgData, err := os.ReadFile(outputPath + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}

	return optimizeImage(imgData)
}

func optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, maxImageSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вписывает размеры в maxSize с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, height * maxSize / width
	}
	return width * maxSize / height, maxSize
}
