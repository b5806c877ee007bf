package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"stargate/internal/domain"
)

const (
	versionsKeyPrefix    = "pdf_versions_"
	annotationsKeyPrefix = "pdf_annotations_"
)

func VersionsKey(fileRef string) string {
	return versionsKeyPrefix + fileRef
}

func AnnotationsKey(fileRef string) string {
	return annotationsKeyPrefix + fileRef
}

// RecordID - идентификатор записи в кэше. Пишется строкой,
// читается и из строки, и из числа.
type RecordID string

func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id must be a string or a number: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// Int64 возвращает числовой id, если запись уже подтверждена сервером
func (id RecordID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func IDOf(n int64) RecordID {
	return RecordID(strconv.FormatInt(n, 10))
}

// VersionEntry - версия в кэше
type VersionEntry struct {
	ID            RecordID  `json:"id"`
	VersionNumber int       `json:"versionNumber"`
	Filename      string    `json:"filename"`
	FileURL       string    `json:"fileUrl"`
	Description   string    `json:"description"`
	Uploaded      time.Time `json:"uploaded"`
	UploadedBy    string    `json:"uploadedBy"`
}

// AnnotationEntry - аннотация в кэше, повторяет серверное представление
type AnnotationEntry struct {
	ID           RecordID                `json:"id"`
	PdfVersionID RecordID                `json:"pdfVersionId"`
	ProjectID    *int64                  `json:"projectId"`
	Rect         domain.Rect             `json:"rect"`
	Color        string                  `json:"color"`
	Comment      string                  `json:"comment"`
	Status       domain.AnnotationStatus `json:"status"`
	CreatedAt    time.Time               `json:"createdAt"`
	CreatedByID  string                  `json:"createdById"`
	AssignedTo   *string                 `json:"assignedTo"`
	TaskID       *int64                  `json:"taskId"`
	Deadline     *time.Time              `json:"deadline"`
}

func LoadVersions(ctx context.Context, a Adapter, fileRef string) ([]VersionEntry, bool, error) {
	var entries []VersionEntry
	ok, err := load(ctx, a, VersionsKey(fileRef), &entries)
	return entries, ok, err
}

func SaveVersions(ctx context.Context, a Adapter, fileRef string, entries []VersionEntry) error {
	if entries == nil {
		entries = []VersionEntry{}
	}
	return save(ctx, a, VersionsKey(fileRef), entries)
}

func LoadAnnotations(ctx context.Context, a Adapter, fileRef string) ([]AnnotationEntry, bool, error) {
	var entries []AnnotationEntry
	ok, err := load(ctx, a, AnnotationsKey(fileRef), &entries)
	return entries, ok, err
}

func SaveAnnotations(ctx context.Context, a Adapter, fileRef string, entries []AnnotationEntry) error {
	if entries == nil {
		entries = []AnnotationEntry{}
	}
	return save(ctx, a, AnnotationsKey(fileRef), entries)
}

func load(ctx context.Context, a Adapter, key string, v any) (bool, error) {
	data, ok, err := a.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("corrupted cache entry %s: %w", key, err)
	}
	return true, nil
}

func save(ctx context.Context, a Adapter, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return a.Put(ctx, key, data)
}
