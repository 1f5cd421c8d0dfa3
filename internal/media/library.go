// Package media implements the media library and the upload pipeline.
package media

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/debounce"
	"github.com/fentro/cms-console/internal/toast"
)

const defaultSearchDebounce = 500 * time.Millisecond

var validate = validator.New()

var (
	ErrInvalidFolder        = apperr.Validation("folder_invalid", "Folder name is required (64 characters max)")
	ErrConfirmationRequired = apperr.Validation("confirmation_required", "Confirm the deletion first")
)

// LibraryConfig wires a Library.
type LibraryConfig struct {
	Gateway        Gateway
	BaseURL        string
	Toasts         toast.Emitter
	Logger         *zap.Logger
	SearchDebounce time.Duration
}

// LibrarySnapshot is the read-only projection of the library.
type LibrarySnapshot struct {
	Folders []Folder `json:"folders"`
	Folder  string   `json:"folder,omitempty"`
	Search  string   `json:"search,omitempty"`
	Files   []File   `json:"files"`
	Loading bool     `json:"loading"`
}

// Library holds the folder tree and the file listing of the open folder.
// Folder, search, and refresh triggers all funnel into one coalesced fetch.
type Library struct {
	gateway Gateway
	baseURL string
	toasts  toast.Emitter
	logger  *zap.Logger

	fetches  singleflight.Group
	searches *debounce.Debouncer

	mu         sync.RWMutex
	folders    []Folder
	folder     string
	search     string
	files      []File
	loading    bool
	generation uint64
}

// NewLibrary validates cfg.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("media: gateway is required")
	}
	library := &Library{
		gateway: cfg.Gateway,
		baseURL: cfg.BaseURL,
		toasts:  cfg.Toasts,
		logger:  cfg.Logger,
	}
	if library.toasts == nil {
		library.toasts = toast.Discard{}
	}
	if library.logger == nil {
		library.logger = zap.NewNop()
	}
	delay := cfg.SearchDebounce
	if delay == 0 {
		delay = defaultSearchDebounce
	}
	library.searches = debounce.New(delay)
	return library, nil
}

// Close drops any pending debounced search.
func (l *Library) Close() {
	l.searches.Stop()
}

// Snapshot returns a copy of the library state.
func (l *Library) Snapshot() LibrarySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LibrarySnapshot{
		Folders: append([]Folder(nil), l.folders...),
		Folder:  l.folder,
		Search:  l.search,
		Files:   append([]File(nil), l.files...),
		Loading: l.loading,
	}
}

// LoadFolders fetches the folder list.
func (l *Library) LoadFolders(ctx context.Context) ([]Folder, error) {
	result, err, _ := l.fetches.Do("folders", func() (any, error) {
		return l.gateway.ListFolders(ctx)
	})
	if err != nil {
		l.report(err, "Failed to load folders", "list_folders")
		return nil, err
	}
	folders := result.([]Folder)
	l.mu.Lock()
	l.folders = append([]Folder(nil), folders...)
	l.mu.Unlock()
	return folders, nil
}

// OpenFolder switches the listing to folder and loads it.
func (l *Library) OpenFolder(ctx context.Context, folder string) ([]File, error) {
	l.mu.Lock()
	l.folder = strings.TrimSpace(folder)
	l.generation++
	l.mu.Unlock()
	return l.Refresh(ctx)
}

// SetSearch filters the open folder once input settles.
func (l *Library) SetSearch(ctx context.Context, term string) {
	l.mu.Lock()
	l.search = strings.TrimSpace(term)
	l.generation++
	l.loading = true
	l.mu.Unlock()
	l.searches.Trigger(func() {
		_, _ = l.Refresh(ctx)
	})
}

// FlushSearch runs a pending debounced search now.
func (l *Library) FlushSearch() {
	l.searches.Flush()
}

// Refresh reloads the open folder. Concurrent refreshes of the same folder
// and search share one request; stale results are dropped.
func (l *Library) Refresh(ctx context.Context) ([]File, error) {
	l.mu.Lock()
	folder, search, generation := l.folder, l.search, l.generation
	l.loading = true
	l.mu.Unlock()

	result, err, _ := l.fetches.Do("files|"+folder+"|"+search, func() (any, error) {
		files, err := l.gateway.ListFiles(ctx, folder, search)
		if err != nil {
			return nil, err
		}
		return RepairFiles(l.baseURL, files), nil
	})

	l.mu.Lock()
	if generation != l.generation {
		current := append([]File(nil), l.files...)
		l.mu.Unlock()
		return current, nil
	}
	l.loading = false
	if err != nil {
		l.mu.Unlock()
		l.report(err, "Failed to load files", "list_files")
		return nil, err
	}
	l.files = append([]File(nil), result.([]File)...)
	files := append([]File(nil), l.files...)
	l.mu.Unlock()
	return files, nil
}

// CreateFolder validates input and creates the folder.
func (l *Library) CreateFolder(ctx context.Context, input FolderInput) (Folder, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validate.Struct(input); err != nil {
		return Folder{}, ErrInvalidFolder
	}
	folder, err := l.gateway.CreateFolder(ctx, input)
	if err != nil {
		l.report(err, "Failed to create folder", "create_folder")
		return Folder{}, err
	}
	l.mu.Lock()
	l.folders = append(l.folders, folder)
	l.mu.Unlock()
	l.toasts.Success("Folder created")
	return folder, nil
}

// DeleteFile removes id after the user confirmed.
func (l *Library) DeleteFile(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := l.gateway.DeleteFile(ctx, id); err != nil {
		l.report(err, "Failed to delete file", "delete_file")
		return err
	}
	l.mu.Lock()
	kept := l.files[:0:0]
	for _, file := range l.files {
		if file.ID != id {
			kept = append(kept, file)
		}
	}
	l.files = kept
	l.mu.Unlock()
	l.toasts.Success("File deleted")
	return nil
}

// Append adds finalized upload results to the listing of their folder.
func (l *Library) Append(files []File) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range files {
		if l.folder != "" && file.FolderID != "" && file.FolderID != l.folder {
			continue
		}
		l.files = append(l.files, file)
	}
}

func (l *Library) report(err error, fallback, operation string) {
	if apperr.IsCancelled(err) {
		return
	}
	l.logger.Warn("media operation failed", zap.String("operation", operation), zap.Error(err))
	if !apperr.ShouldToast(err) {
		return
	}
	message := apperr.MessageOf(err)
	if message == apperr.GenericMessage {
		message = fallback
	}
	l.toasts.Error(message)
}
