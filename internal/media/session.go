package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/metrics"
	"github.com/fentro/cms-console/internal/toast"
)

// Phase is the upload session lifecycle stage.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelect    Phase = "select"
	PhaseProcess   Phase = "process"
	PhaseCommit    Phase = "commit"
	PhaseFinalize  Phase = "finalize"
	PhaseCancelled Phase = "cancelled"
)

var (
	ErrNothingSelected = apperr.Validation("nothing_selected", "Select at least one supported file")
	ErrFolderRequired  = apperr.Validation("folder_required", "Choose a target folder")
	ErrWrongPhase      = apperr.New(apperr.KindConflict, "upload_phase", "The upload is not ready for this step")
)

// Source is a file picked by the user.
type Source struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Item is the staging record of one selected file.
type Item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Size      int64    `json:"size"`
	MIME      string   `json:"mime"`
	Type      FileType `json:"type"`
	Preview   string   `json:"preview,omitempty"`
	Processed bool     `json:"processed"`
	// Prepared is PROCESS-phase progress; Progress is the upload itself.
	Prepared int    `json:"prepared"`
	Progress int    `json:"progress"`
	Oversize bool   `json:"oversize,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Rejection names a file dropped by the selection filter.
type Rejection struct {
	Name   string `json:"name"`
	MIME   string `json:"mime"`
	Reason string `json:"reason"`
}

// SessionSnapshot is the read-only projection of a session.
type SessionSnapshot struct {
	ID        string      `json:"id"`
	Phase     Phase       `json:"phase"`
	Folder    string      `json:"folder,omitempty"`
	Items     []Item      `json:"items"`
	Rejected  []Rejection `json:"rejected,omitempty"`
	Aggregate float64     `json:"aggregate"`
	Results   []File      `json:"results,omitempty"`
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Uploader  Uploader
	Previewer Previewer
	Toasts    toast.Emitter
	Logger    *zap.Logger
	BaseURL   string
	// AdvisoryBytes is the per-file size flagged as oversize; zero uses
	// MaxAdvisoryBytes.
	AdvisoryBytes int64
	// Parallel caps concurrent uploads in COMMIT; zero starts one request
	// per item.
	Parallel int
}

type staged struct {
	item   Item
	source Source
}

// Session drives one batch of files through SELECT, PROCESS, COMMIT and
// FINALIZE. Cancel is allowed between phases; uploads already in flight run
// to completion and their results are dropped.
type Session struct {
	id        string
	uploader  Uploader
	previewer Previewer
	toasts    toast.Emitter
	logger    *zap.Logger
	baseURL   string
	advisory  int64
	parallel  int

	mu        sync.Mutex
	phase     Phase
	folder    string
	items     []*staged
	rejected  []Rejection
	results   []File
	aggregate float64
	listeners map[int]func(SessionSnapshot)
	nextID    int
}

// NewSession returns an idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Uploader == nil {
		return nil, errors.New("media: uploader is required")
	}
	session := &Session{
		id:        uuid.NewString(),
		uploader:  cfg.Uploader,
		previewer: cfg.Previewer,
		toasts:    cfg.Toasts,
		logger:    cfg.Logger,
		baseURL:   cfg.BaseURL,
		advisory:  cfg.AdvisoryBytes,
		parallel:  cfg.Parallel,
		phase:     PhaseIdle,
		listeners: make(map[int]func(SessionSnapshot)),
	}
	if session.toasts == nil {
		session.toasts = toast.Discard{}
	}
	if session.logger == nil {
		session.logger = zap.NewNop()
	}
	if session.advisory <= 0 {
		session.advisory = MaxAdvisoryBytes
	}
	return session, nil
}

// ID identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Select stages every accepted source and immediately runs PROCESS.
// Unsupported files are reported, not staged; oversize files are flagged.
func (s *Session) Select(ctx context.Context, sources []Source) (SessionSnapshot, error) {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return SessionSnapshot{}, ErrWrongPhase
	}
	for _, source := range sources {
		contentType := sniff(source)
		if !Accepts(contentType) {
			s.rejected = append(s.rejected, Rejection{Name: source.Name, MIME: contentType, Reason: "Unsupported file type"})
			continue
		}
		s.items = append(s.items, &staged{
			source: source,
			item: Item{
				ID:       uuid.NewString(),
				Name:     source.Name,
				Size:     source.Size,
				MIME:     contentType,
				Type:     Classify(contentType),
				Oversize: source.Size > s.advisory,
			},
		})
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		return s.Snapshot(), ErrNothingSelected
	}
	s.phase = PhaseSelect
	s.mu.Unlock()
	s.notify()

	if err := s.process(ctx); err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// process creates a preview for each image and marks every item processed.
func (s *Session) process(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseSelect {
		s.mu.Unlock()
		return ErrWrongPhase
	}
	s.phase = PhaseProcess
	items := append([]*staged(nil), s.items...)
	s.mu.Unlock()

	for _, entry := range items {
		if err := ctx.Err(); err != nil {
			return apperr.ErrCancelled
		}
		var handle string
		if entry.item.Type == TypeImage && s.previewer != nil {
			created, err := s.previewer.Create(ctx, entry.item.Name, entry.source.Open)
			if err != nil {
				s.logger.Debug("preview not created", zap.String("file", entry.item.Name), zap.Error(err))
			}
			handle = created
		}

		s.mu.Lock()
		if s.phase == PhaseCancelled {
			s.mu.Unlock()
			s.release(handle)
			return apperr.ErrCancelled
		}
		entry.item.Preview = handle
		entry.item.Processed = true
		entry.item.Prepared = 100
		s.mu.Unlock()
		s.notify()
	}
	return nil
}

// Commit uploads every item into folder in parallel and, once all requests
// resolve, replaces the staged items with the returned records.
func (s *Session) Commit(ctx context.Context, folder, description string) ([]File, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return nil, ErrFolderRequired
	}
	s.mu.Lock()
	if s.phase != PhaseProcess || !s.allProcessed() {
		s.mu.Unlock()
		return nil, ErrWrongPhase
	}
	s.phase = PhaseCommit
	s.folder = folder
	items := append([]*staged(nil), s.items...)
	s.mu.Unlock()
	s.notify()

	uploaded := make([][]File, len(items))
	var group errgroup.Group
	if s.parallel > 0 {
		group.SetLimit(s.parallel)
	}
	for index, entry := range items {
		group.Go(func() error {
			files, err := s.uploader.Upload(ctx, UploadRequest{
				FileName:    entry.item.Name,
				ContentType: entry.item.MIME,
				Type:        entry.item.Type,
				Folder:      folder,
				Description: description,
				Open:        entry.source.Open,
			}, func(sent, total int64) {
				s.advance(entry, sent, total)
			})
			if err != nil {
				s.mu.Lock()
				entry.item.Error = apperr.MessageOf(err)
				s.mu.Unlock()
				s.notify()
				return fmt.Errorf("%s: %w", entry.item.Name, err)
			}
			uploaded[index] = files
			return nil
		})
	}
	firstErr := group.Wait()

	s.mu.Lock()
	if s.phase == PhaseCancelled {
		s.mu.Unlock()
		metrics.Uploads.WithLabelValues("discarded").Add(float64(len(items)))
		return nil, apperr.ErrCancelled
	}
	var results []File
	failed := 0
	for index, entry := range items {
		if entry.item.Error != "" {
			failed++
			metrics.Uploads.WithLabelValues("error").Inc()
			continue
		}
		metrics.Uploads.WithLabelValues("ok").Inc()
		metrics.UploadedBytes.Add(float64(entry.item.Size))
		results = append(results, RepairFiles(s.baseURL, uploaded[index])...)
	}
	s.results = results
	s.phase = PhaseFinalize
	handles := s.previewHandles()
	s.items = nil
	s.mu.Unlock()

	for _, handle := range handles {
		s.release(handle)
	}
	s.notify()

	if firstErr != nil {
		s.logger.Warn("upload failed", zap.Int("failed", failed), zap.Int("total", len(items)), zap.Error(firstErr))
		if apperr.ShouldToast(firstErr) {
			s.toasts.Error(fmt.Sprintf("Uploaded %d of %d files", len(items)-failed, len(items)))
		}
		return results, firstErr
	}
	s.toasts.Success(fmt.Sprintf("%d file(s) uploaded", len(items)))
	return results, nil
}

// Cancel abandons the session. Previews are released now; uploads in flight
// finish but their results are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.phase == PhaseFinalize || s.phase == PhaseCancelled {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseCancelled
	handles := s.previewHandles()
	for _, entry := range s.items {
		entry.item.Preview = ""
	}
	s.mu.Unlock()

	for _, handle := range handles {
		s.release(handle)
	}
	s.notify()
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := SessionSnapshot{
		ID:        s.id,
		Phase:     s.phase,
		Folder:    s.folder,
		Items:     make([]Item, 0, len(s.items)),
		Rejected:  append([]Rejection(nil), s.rejected...),
		Aggregate: s.aggregate,
		Results:   append([]File(nil), s.results...),
	}
	for _, entry := range s.items {
		snapshot.Items = append(snapshot.Items, entry.item)
	}
	return snapshot
}

// Subscribe registers listener for every state change.
func (s *Session) Subscribe(listener func(SessionSnapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// advance applies an upload progress report; per-item progress and the
// aggregate only move forward.
func (s *Session) advance(entry *staged, sent, total int64) {
	if total <= 0 {
		return
	}
	percent := int(sent * 100 / total)
	if percent > 100 {
		percent = 100
	}
	s.mu.Lock()
	if percent <= entry.item.Progress {
		s.mu.Unlock()
		return
	}
	entry.item.Progress = percent
	sum := 0
	for _, other := range s.items {
		sum += other.item.Progress
	}
	if len(s.items) > 0 {
		if aggregate := float64(sum) / float64(len(s.items)*100); aggregate > s.aggregate {
			s.aggregate = aggregate
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) allProcessed() bool {
	for _, entry := range s.items {
		if !entry.item.Processed {
			return false
		}
	}
	return len(s.items) > 0
}

func (s *Session) previewHandles() []string {
	var handles []string
	for _, entry := range s.items {
		if entry.item.Preview != "" {
			handles = append(handles, entry.item.Preview)
		}
	}
	return handles
}

func (s *Session) release(handle string) {
	if handle == "" || s.previewer == nil {
		return
	}
	if err := s.previewer.Release(handle); err != nil {
		s.logger.Debug("preview not released", zap.String("handle", handle), zap.Error(err))
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	listeners := make([]func(SessionSnapshot), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	snapshot := s.Snapshot()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

// sniff prefers the content's magic bytes when they name a supported type,
// then the declared type, then whatever was detected.
func sniff(source Source) string {
	declared := BaseMIME(source.ContentType)
	if source.Open == nil {
		return declared
	}
	reader, err := source.Open()
	if err != nil {
		return declared
	}
	defer reader.Close()

	detected, err := mimetype.DetectReader(reader)
	if err != nil || detected == nil {
		return declared
	}
	sniffed := BaseMIME(detected.String())
	if Accepts(sniffed) || declared == "" {
		return sniffed
	}
	return declared
}
