package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"sync"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/media"
)

var errUnknownUpload = apperr.New(apperr.KindNotFound, "upload_not_found", "Upload session not found")

// uploadRegistry keeps the live upload sessions of the console by id.
// Finished and cancelled sessions are pruned whenever a new one opens.
type uploadRegistry struct {
	open func() (*media.Session, error)

	mu       sync.Mutex
	sessions map[string]*media.Session
}

func newUploadRegistry(open UploadFactory) *uploadRegistry {
	return &uploadRegistry{open: open, sessions: make(map[string]*media.Session)}
}

func (r *uploadRegistry) create() (*media.Session, error) {
	session, err := r.open()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.sessions {
		switch existing.Snapshot().Phase {
		case media.PhaseFinalize, media.PhaseCancelled:
			delete(r.sessions, id)
		}
	}
	r.sessions[session.ID()] = session
	return session, nil
}

func (r *uploadRegistry) get(id string) (*media.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, errUnknownUpload
	}
	return session, nil
}

func (r *uploadRegistry) remove(id string) (*media.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, errUnknownUpload
	}
	delete(r.sessions, id)
	return session, nil
}

// sourcesFromForm buffers every uploaded part so the bytes outlive the
// request that carried them.
func sourcesFromForm(form *multipart.Form, field string) ([]media.Source, error) {
	headers := form.File[field]
	sources := make([]media.Source, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "file_unreadable", "A selected file could not be read", err)
		}
		content, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "file_unreadable", "A selected file could not be read", err)
		}
		sources = append(sources, media.Source{
			Name:        header.Filename,
			Size:        int64(len(content)),
			ContentType: header.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(content)), nil
			},
		})
	}
	return sources, nil
}
