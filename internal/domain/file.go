package domain

import "time"

// FileRecord - файл проекта. Принадлежит внешней подсистеме файлов,
// здесь используется только для чтения.
type FileRecord struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ProjectID   *int64    `json:"projectId,omitempty" db:"project_id"`
	FolderID    *int64    `json:"folderId,omitempty" db:"folder_id"`
	UploadedBy  string    `json:"uploadedBy" db:"uploaded_by"`
	StoragePath string    `json:"storagePath" db:"storage_path"`
	UploadedAt  time.Time `json:"uploadedAt" db:"uploaded_at"`
}
