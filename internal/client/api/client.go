// Package api - HTTP-клиент сервера версий и аннотаций
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stargate/internal/domain"
)

// ErrAuthorization сигнализирует об ошибке авторизации (401)
var ErrAuthorization = errors.New("authorization failed")

// PromotionResult - ответ на повышение аннотации до задачи
type PromotionResult struct {
	Annotation *domain.PdfAnnotation `json:"annotation"`
	TaskID     int64                 `json:"taskId"`
	Orphaned   bool                  `json:"orphaned"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewClient создает клиент. timeout ограничивает каждый запрос целиком.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		authToken:  token,
	}
}

func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

func (c *Client) ListVersions(ctx context.Context, fileID int64) ([]domain.PdfVersion, error) {
	var versions []domain.PdfVersion
	err := c.doJSON(ctx, http.MethodGet, c.path("files", id(fileID), "versions"), nil, &versions)
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// CreateVersion загружает PDF сырым телом
func (c *Client) CreateVersion(ctx context.Context, fileID int64, filename string, content []byte, description string) (*domain.PdfVersion, error) {
	endpoint, err := c.url(c.path("files", id(fileID), "versions"))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Filename", filename)
	req.Header.Set("X-Description", url.QueryEscape(description))

	var version domain.PdfVersion
	if err := c.do(req, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

func (c *Client) ListAnnotations(ctx context.Context, versionID int64) ([]domain.PdfAnnotation, error) {
	var annotations []domain.PdfAnnotation
	err := c.doJSON(ctx, http.MethodGet, c.path("versions", id(versionID), "annotations"), nil, &annotations)
	if err != nil {
		return nil, err
	}
	if annotations == nil {
		annotations = []domain.PdfAnnotation{}
	}
	return annotations, nil
}

func (c *Client) CreateAnnotation(ctx context.Context, in domain.AnnotationInput) (*domain.PdfAnnotation, error) {
	var annotation domain.PdfAnnotation
	err := c.doJSON(ctx, http.MethodPost, c.path("versions", id(in.PdfVersionID), "annotations"), in, &annotation)
	if err != nil {
		return nil, err
	}
	return &annotation, nil
}

func (c *Client) UpdateAnnotation(ctx context.Context, annotationID int64, patch domain.AnnotationPatch) (*domain.PdfAnnotation, error) {
	var annotation domain.PdfAnnotation
	err := c.doJSON(ctx, http.MethodPatch, c.path("annotations", id(annotationID)), patch, &annotation)
	if err != nil {
		return nil, err
	}
	return &annotation, nil
}

// DeleteAnnotation возвращает id версии удалённой аннотации
func (c *Client) DeleteAnnotation(ctx context.Context, annotationID int64) (int64, error) {
	var resp struct {
		Success   bool  `json:"success"`
		VersionID int64 `json:"versionId"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, c.path("annotations", id(annotationID)), nil, &resp); err != nil {
		return 0, err
	}
	return resp.VersionID, nil
}

func (c *Client) PromoteToTask(ctx context.Context, annotationID int64) (*PromotionResult, error) {
	var result PromotionResult
	if err := c.doJSON(ctx, http.MethodPost, c.path("annotations", id(annotationID), "promote"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ContentURL - адрес бинарника версии для просмотрщика
func (c *Client) ContentURL(versionID int64) string {
	u, err := c.url(c.path("versions", id(versionID), "content"))
	if err != nil {
		return ""
	}
	return u
}

func (c *Client) path(parts ...string) []string {
	return append([]string{"v1"}, parts...)
}

func (c *Client) url(parts []string) (string, error) {
	u, err := url.JoinPath(c.baseURL, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to build url: %w", err)
	}
	return u, nil
}

func (c *Client) doJSON(ctx context.Context, method string, parts []string, body, out any) error {
	endpoint, err := c.url(parts)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do выполняет запрос и переводит статусы ответа в ошибки домена
func (c *Client) do(req *http.Request, out any) error {
	c.setAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthorization, body.Error)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body.Error)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrVersionConflict, body.Error)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, body.Error)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStoreUnavailable, resp.StatusCode, body.Error)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error)
	}
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}
