package media

import (
	"encoding/json"
	"time"
)

// FileType is the coarse media class the service stores.
type FileType string

const (
	TypeImage    FileType = "image"
	TypeVideo    FileType = "video"
	TypeDocument FileType = "document"
)

// Folder groups media files.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Parent      string    `json:"parent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts the service's `_id` member.
func (f *Folder) UnmarshalJSON(data []byte) error {
	type plain Folder
	var aux struct {
		plain
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = Folder(aux.plain)
	if f.ID == "" {
		f.ID = aux.LegacyID
	}
	return nil
}

// File is a stored media record.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        FileType  `json:"type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	FolderID    string    `json:"folderId"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts `_id` and the `folder` alias for folderId.
func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	var aux struct {
		plain
		LegacyID string `json:"_id"`
		Folder   string `json:"folder"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = File(aux.plain)
	if f.ID == "" {
		f.ID = aux.LegacyID
	}
	if f.FolderID == "" {
		f.FolderID = aux.Folder
	}
	return nil
}
