package media

import (
	"context"
	"io"
	"net/url"

	"github.com/fentro/cms-console/internal/apiclient"
)

// FolderInput is the create-folder form.
type FolderInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description,omitempty" validate:"max=256"`
	Parent      string `json:"parent,omitempty"`
}

// UploadRequest is one file sent to the media endpoint.
type UploadRequest struct {
	FileName    string
	ContentType string
	Type        FileType
	Folder      string
	Description string
	Open        func() (io.ReadCloser, error)
}

// Uploader sends one file and reports progress.
type Uploader interface {
	Upload(ctx context.Context, request UploadRequest, progress apiclient.ProgressFunc) ([]File, error)
}

// Gateway is the media slice of the CMS service.
type Gateway interface {
	Uploader
	ListFolders(ctx context.Context) ([]Folder, error)
	ListFiles(ctx context.Context, folder, search string) ([]File, error)
	CreateFolder(ctx context.Context, input FolderInput) (Folder, error)
	DeleteFile(ctx context.Context, id string) error
}

// APIGateway implements Gateway over the shared client.
type APIGateway struct {
	client *apiclient.Client
}

// NewAPIGateway wraps client.
func NewAPIGateway(client *apiclient.Client) *APIGateway {
	return &APIGateway{client: client}
}

func (g *APIGateway) ListFolders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if _, err := g.client.GetData(ctx, "media/folders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (g *APIGateway) ListFiles(ctx context.Context, folder, search string) ([]File, error) {
	query := url.Values{}
	if folder != "" {
		query.Set("folder", folder)
	}
	if search != "" {
		query.Set("search", search)
	}
	var files []File
	if _, err := g.client.GetData(ctx, "media/files", query, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (g *APIGateway) CreateFolder(ctx context.Context, input FolderInput) (Folder, error) {
	var envelope struct {
		Data Folder `json:"data"`
	}
	if err := g.client.PostJSON(ctx, "media/folders", input, &envelope); err != nil {
		return Folder{}, err
	}
	return envelope.Data, nil
}

func (g *APIGateway) DeleteFile(ctx context.Context, id string) error {
	return g.client.Delete(ctx, apiclient.Sprintf("media/files/%s", id))
}

// Upload posts request as multipart fields files, description, type, folder.
func (g *APIGateway) Upload(ctx context.Context, request UploadRequest, progress apiclient.ProgressFunc) ([]File, error) {
	upload := apiclient.Upload{
		Fields: map[string]string{
			"description": request.Description,
			"type":        string(request.Type),
			"folder":      request.Folder,
		},
		Files: []apiclient.UploadFile{{
			FieldName:   "files",
			FileName:    request.FileName,
			ContentType: request.ContentType,
			Open:        request.Open,
		}},
	}
	response, err := g.client.Upload(ctx, "media/upload", upload, progress)
	if err != nil {
		return nil, err
	}
	var files []File
	if _, err := response.DecodeData(&files); err != nil {
		return nil, err
	}
	return files, nil
}
