package content

import (
	"context"
	"sync"

	"github.com/fentro/cms-console/internal/apperr"
)

// ErrNotPublished hides drafts from public lookups.
var ErrNotPublished = apperr.New(apperr.KindNotFound, "not_published", "Page not found")

// Service lazily builds one Editor per collection.
type Service struct {
	cfg EditorConfig

	mu      sync.Mutex
	editors map[Collection]*Editor
}

// NewService shares cfg across every editor it builds.
func NewService(cfg EditorConfig) *Service {
	return &Service{cfg: cfg, editors: make(map[Collection]*Editor)}
}

// Editor returns the editor for name, creating it on first use.
func (s *Service) Editor(name string) (*Editor, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if editor, ok := s.editors[spec.Name]; ok {
		return editor, nil
	}
	editor, err := NewEditor(spec, s.cfg)
	if err != nil {
		return nil, err
	}
	s.editors[spec.Name] = editor
	return editor, nil
}

// Published resolves slug in a publishable collection for anonymous
// readers. Drafts are reported as missing.
func (s *Service) Published(ctx context.Context, name, slug string) (Document, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if !spec.Publishable {
		return nil, ErrNotPublishable
	}
	document, err := s.cfg.Gateway.BySlug(ctx, spec, slug)
	if err != nil {
		return nil, err
	}
	if !isPublished(document) {
		return nil, ErrNotPublished
	}
	return document, nil
}

// Close stops every editor.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, editor := range s.editors {
		editor.Close()
	}
}

func isPublished(document Document) bool {
	if published, ok := document["published"].(bool); ok {
		return published
	}
	status := document.String("status")
	return status == "" || status == "published"
}
