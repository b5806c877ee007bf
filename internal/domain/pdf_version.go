package domain

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PdfVersion - неизменяемый снимок содержимого файла
type PdfVersion struct {
	ID            int64          `json:"id" db:"id"`
	FileID        int64          `json:"fileId" db:"file_id"`
	VersionNumber int            `json:"versionNumber" db:"version_number"`
	FilePath      string         `json:"filePath" db:"file_path"`
	Description   *string        `json:"description" db:"description"`
	UploadedAt    time.Time      `json:"uploadedAt" db:"uploaded_at"`
	UploadedByID  string         `json:"uploadedById" db:"uploaded_by_id"`
	Metadata      types.JSONText `json:"metadata,omitempty" db:"metadata"`
}

// CreateVersionInput описывает новую версию файла
type CreateVersionInput struct {
	FileID      int64
	Filename    string
	Content     []byte
	Description string
	UploaderID  string
}

// LatestVersion возвращает версию с максимальным номером или nil.
func LatestVersion(versions []PdfVersion) *PdfVersion {
	var latest *PdfVersion
	for i := range versions {
		if latest == nil || versions[i].VersionNumber > latest.VersionNumber {
			latest = &versions[i]
		}
	}
	return latest
}
