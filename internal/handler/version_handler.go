package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"stargate/internal/domain"
	"stargate/internal/logger"
	"stargate/internal/service"
)

const maxUploadSize = 100 << 20

var validate = validator.New()

// VersionService - операции хранилища версий, нужные обработчикам
type VersionService interface {
	ListVersions(ctx context.Context, fileID int64) ([]domain.PdfVersion, error)
	GetVersion(ctx context.Context, versionID int64) (*domain.PdfVersion, error)
	CreateVersion(ctx context.Context, in domain.CreateVersionInput) (*domain.PdfVersion, error)
	OpenVersionContent(ctx context.Context, versionID int64, rng *service.ByteRange) (*service.VersionContent, error)
	OpenFileContent(ctx context.Context, fileID int64, rng *service.ByteRange) (*service.VersionContent, error)
}

type VersionHandler struct {
	versions VersionService
}

func NewVersionHandler(versions VersionService) *VersionHandler {
	return &VersionHandler{versions: versions}
}

type uploadForm struct {
	Filename    string `validate:"max=255"`
	Description string `validate:"max=2000"`
}

// ListVersions возвращает версии файла по возрастанию номера
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	fileID, err := IDParam(r, "fileID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	versions, err := h.versions.ListVersions(r.Context(), fileID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := IDParam(r, "versionID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	version, err := h.versions.GetVersion(r.Context(), versionID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}

// CreateVersion принимает multipart (поля file и description)
// или сырое тело application/pdf с заголовками X-Filename и X-Description.
func (h *VersionHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	fileID, err := IDParam(r, "fileID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)

	var (
		form    uploadForm
		content []byte
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, content, err = readMultipartVersion(r)
	} else {
		form = uploadForm{
			Filename:    r.Header.Get("X-Filename"),
			Description: r.Header.Get("X-Description"),
		}
		if decoded, derr := url.QueryUnescape(form.Description); derr == nil {
			form.Description = decoded
		}
		content, err = io.ReadAll(r.Body)
	}
	if err != nil {
		WriteError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	if err := validate.Struct(form); err != nil {
		WriteError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	version, err := h.versions.CreateVersion(r.Context(), domain.CreateVersionInput{
		FileID:      fileID,
		Filename:    form.Filename,
		Content:     content,
		Description: form.Description,
		UploaderID:  userID,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, version)
}

func readMultipartVersion(r *http.Request) (uploadForm, []byte, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return uploadForm{}, nil, fmt.Errorf("failed to parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadForm{}, nil, fmt.Errorf("no file uploaded: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return uploadForm{}, nil, err
	}

	return uploadForm{
		Filename:    header.Filename,
		Description: r.FormValue("description"),
	}, content, nil
}

// VersionContent отдаёт бинарник версии, с поддержкой Range
func (h *VersionHandler) VersionContent(w http.ResponseWriter, r *http.Request) {
	versionID, err := IDParam(r, "versionID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.serveContent(w, r, func(ctx context.Context, rng *service.ByteRange) (*service.VersionContent, error) {
		return h.versions.OpenVersionContent(ctx, versionID, rng)
	})
}

// FileContent отдаёт текущую версию файла
func (h *VersionHandler) FileContent(w http.ResponseWriter, r *http.Request) {
	fileID, err := IDParam(r, "fileID")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.serveContent(w, r, func(ctx context.Context, rng *service.ByteRange) (*service.VersionContent, error) {
		return h.versions.OpenFileContent(ctx, fileID, rng)
	})
}

type openFunc func(ctx context.Context, rng *service.ByteRange) (*service.VersionContent, error)

func (h *VersionHandler) serveContent(w http.ResponseWriter, r *http.Request, open openFunc) {
	content, err := open(r.Context(), nil)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	size := content.Object.ContentLength()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", contentDisposition(contentFilename(content.Version)))
	w.Header().Set("Cache-Control", "private, max-age=3600")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		defer content.Object.Close()
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		copyContent(w, content.Object)
		return
	}

	// Размер известен только после открытия, диапазон запрашиваем отдельно
	content.Object.Close()

	ranges, err := parseRange(rangeHeader, size)
	if err != nil || len(ranges) != 1 {
		if err == nil {
			err = fmt.Errorf("multiple ranges not supported")
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, errorResponse{Error: err.Error()})
		return
	}
	start, end := ranges[0][0], ranges[0][1]

	part, err := open(r.Context(), &service.ByteRange{Start: start, End: end})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer part.Object.Close()

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	copyContent(w, part.Object)
}

func copyContent(w io.Writer, src io.Reader) {
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(w, src, buf); err != nil {
		logger.Sugar.Warnf("[Download] Failed to stream content: %v", err)
	}
}

// parseRange разбирает заголовок Range для объекта размером fileSize
func parseRange(rangeHeader string, fileSize int64) ([][2]int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return nil, fmt.Errorf("invalid range format")
	}

	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	var ranges [][2]int64

	for _, r := range strings.Split(rangeHeader, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		parts := strings.Split(r, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid range format")
		}

		var start, end int64
		var err error

		if parts[0] == "" {
			// -N: последние N байт
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, err
			}
			start = fileSize - end
			if start < 0 {
				start = 0
			}
			end = fileSize - 1
		} else {
			start, err = strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return nil, err
			}

			if parts[1] == "" {
				end = fileSize - 1
			} else {
				end, err = strconv.ParseInt(parts[1], 10, 64)
				if err != nil {
					return nil, err
				}
				// конец за пределами файла обрезается
				if end >= fileSize {
					end = fileSize - 1
				}
			}
		}

		if start < 0 || end < 0 || start > end || start >= fileSize {
			return nil, fmt.Errorf("invalid range values")
		}

		ranges = append(ranges, [2]int64{start, end})
	}

	if len(ranges) == 0 {
		return nil, fmt.Errorf("invalid range format")
	}
	return ranges, nil
}

func contentFilename(v *domain.PdfVersion) string {
	if v == nil {
		return "document.pdf"
	}
	var meta struct {
		Filename string `json:"filename"`
	}
	if len(v.Metadata) > 0 && json.Unmarshal(v.Metadata, &meta) == nil && meta.Filename != "" {
		return meta.Filename
	}
	return fmt.Sprintf("version-%d.pdf", v.VersionNumber)
}

func contentDisposition(name string) string {
	asciiName := strings.ReplaceAll(name, `"`, `\"`)
	return fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`, asciiName, url.PathEscape(name))
}
