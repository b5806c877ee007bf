package coordinator

import (
	"encoding/json"
	"path"

	"github.com/google/uuid"

	"stargate/internal/client/cache"
	"stargate/internal/domain"
)

const localIDPrefix = "local-"

// localID - временный id записи, ещё не подтверждённой сервером
func localID() cache.RecordID {
	return cache.RecordID(localIDPrefix + uuid.NewString())
}

func versionEntry(v domain.PdfVersion, fileURL string) cache.VersionEntry {
	e := cache.VersionEntry{
		ID:            cache.IDOf(v.ID),
		VersionNumber: v.VersionNumber,
		Filename:      path.Base(v.FilePath),
		FileURL:       fileURL,
		Uploaded:      v.UploadedAt,
		UploadedBy:    v.UploadedByID,
	}
	if v.Description != nil {
		e.Description = *v.Description
	}

	var meta struct {
		Filename string `json:"filename"`
	}
	if len(v.Metadata) > 0 && json.Unmarshal(v.Metadata, &meta) == nil && meta.Filename != "" {
		e.Filename = meta.Filename
	}
	return e
}

func annotationEntry(a domain.PdfAnnotation) cache.AnnotationEntry {
	return cache.AnnotationEntry{
		ID:           cache.IDOf(a.ID),
		PdfVersionID: cache.IDOf(a.PdfVersionID),
		ProjectID:    a.ProjectID,
		Rect:         a.Rect,
		Color:        a.Color,
		Comment:      a.Comment,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		CreatedByID:  a.CreatedByID,
		AssignedTo:   a.AssignedTo,
		TaskID:       a.TaskID,
		Deadline:     a.Deadline,
	}
}

// applyPatch применяет патч к записи так же, как сервер применяет его к строке
func applyPatch(e *cache.AnnotationEntry, p domain.AnnotationPatch) {
	a := domain.PdfAnnotation{
		ProjectID:   e.ProjectID,
		Rect:        e.Rect,
		Color:       e.Color,
		Comment:     e.Comment,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		CreatedByID: e.CreatedByID,
		AssignedTo:  e.AssignedTo,
		TaskID:      e.TaskID,
		Deadline:    e.Deadline,
	}
	p.Apply(&a)

	e.ProjectID = a.ProjectID
	e.Rect = a.Rect
	e.Color = a.Color
	e.Comment = a.Comment
	e.Status = a.Status
	e.AssignedTo = a.AssignedTo
	e.TaskID = a.TaskID
	e.Deadline = a.Deadline
}

// createInput - полное состояние записи для создания на сервере
func createInput(e cache.AnnotationEntry, versionID int64) domain.AnnotationInput {
	rect := e.Rect
	return domain.AnnotationInput{
		PdfVersionID: versionID,
		ProjectID:    e.ProjectID,
		Rect:         &rect,
		Color:        e.Color,
		Comment:      e.Comment,
		Status:       e.Status,
		CreatedByID:  e.CreatedByID,
		AssignedTo:   e.AssignedTo,
		TaskID:       e.TaskID,
		Deadline:     e.Deadline,
	}
}
