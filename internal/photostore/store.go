// Package photostore owns the authoritative list of photo records and its
// persisted serialization.
package photostore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/kv"
	"github.com/starford/geocam/internal/models"
)

// IndexKey is the key-value entry holding the serialized photo list.
const IndexKey = "photos_v1"

const defaultRehydrateLimit = 4

// Files is the durable image storage the store writes through.
// *gateway.Gateway satisfies it.
type Files interface {
	ReadFileBytes(ctx context.Context, path string) ([]byte, error)
	WriteFileBytes(ctx context.Context, data []byte) (string, error)
	DeleteFile(ctx context.Context, path string) error
}

// Store coordinates the in-memory list, the key-value index and file storage.
// All operations are serialized on one mutex; every mutation is persisted
// before it returns.
type Store struct {
	kv    kv.Store
	files Files

	mu     sync.Mutex
	photos []models.Photo

	notifiers      []Notifier
	logger         *slog.Logger
	now            func() time.Time
	rehydrateLimit int
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier registers n for lifecycle events. May be given more than once.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifiers = append(s.notifiers, n) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithRehydrateLimit bounds concurrent file reads during Load.
func WithRehydrateLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.rehydrateLimit = n
		}
	}
}

// New creates an empty store. Call Load to read the persisted index.
func New(store kv.Store, files Files, opts ...Option) *Store {
	s := &Store{
		kv:             store,
		files:          files,
		logger:         slog.Default(),
		now:            time.Now,
		rehydrateLimit: defaultRehydrateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record is the persisted layout of a photo. webPath is deliberately absent.
type record struct {
	ID        string         `json:"id"`
	FilePath  string         `json:"filePath"`
	CreatedAt string         `json:"createdAt"`
	Liked     bool           `json:"liked"`
	Coords    *models.Coords `json:"coords,omitempty"`
	Address   string         `json:"address,omitempty"`
}

// Load replaces the in-memory list with the persisted index. An absent or
// malformed index yields an empty list. Records whose image cannot be read
// are kept without a webPath.
func (s *Store) Load(ctx context.Context) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("photostore: load: %w: %w", apperr.ErrStorage, err)
	}
	photos := []models.Photo{}
	if ok {
		photos = s.decode(raw)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rehydrateLimit)
	for i := range photos {
		if photos[i].WebPath != "" {
			continue
		}
		g.Go(func() error {
			data, err := s.files.ReadFileBytes(gctx, photos[i].FilePath)
			if err != nil {
				s.logger.Warn("photostore: image unavailable",
					slog.String("id", photos[i].ID),
					slog.String("path", photos[i].FilePath),
					slog.String("error", err.Error()))
				return nil
			}
			photos[i].WebPath = DataURI(data)
			return nil
		})
	}
	_ = g.Wait()

	s.photos = photos
	s.logger.Info("photostore: loaded", slog.Int("photos", len(photos)))
	return cloneAll(photos), nil
}

func (s *Store) decode(raw string) []models.Photo {
	var recs []record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		s.logger.Warn("photostore: malformed index, starting empty", slog.String("error", err.Error()))
		return []models.Photo{}
	}
	photos := make([]models.Photo, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		if r.ID == "" || r.FilePath == "" || seen[r.ID] {
			s.logger.Warn("photostore: dropping invalid record", slog.String("id", r.ID))
			continue
		}
		created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			s.logger.Warn("photostore: dropping record with bad timestamp",
				slog.String("id", r.ID), slog.String("error", err.Error()))
			continue
		}
		seen[r.ID] = true
		p := models.Photo{
			ID:        r.ID,
			FilePath:  r.FilePath,
			CreatedAt: created,
			Liked:     r.Liked,
			Coords:    r.Coords,
		}
		// an address is only meaningful for a geotagged record
		if r.Coords != nil {
			p.Address = r.Address
		}
		photos = append(photos, p)
	}
	return photos
}

// Commit stores data as a new photo at the front of the list. A failed write
// leaves no record; a failed persist rolls back the insert and removes the file.
func (s *Store) Commit(ctx context.Context, data []byte, coords *models.Coords) (models.Photo, error) {
	if len(data) == 0 {
		return models.Photo{}, fmt.Errorf("photostore: commit: empty image")
	}

	s.mu.Lock()
	path, err := s.files.WriteFileBytes(ctx, data)
	if err != nil {
		s.mu.Unlock()
		return models.Photo{}, fmt.Errorf("photostore: commit: %w", asStorage(err))
	}

	created := s.now().UTC()
	if len(s.photos) > 0 && created.Before(s.photos[0].CreatedAt) {
		created = s.photos[0].CreatedAt
	}
	p := models.Photo{
		ID:        s.newID(),
		FilePath:  path,
		WebPath:   DataURI(data),
		CreatedAt: created,
	}
	if coords != nil {
		c := *coords
		p.Coords = &c
	}

	s.photos = slices.Insert(s.photos, 0, p)
	if err := s.persistLocked(ctx); err != nil {
		s.photos = s.photos[1:]
		if derr := s.files.DeleteFile(context.WithoutCancel(ctx), path); derr != nil {
			s.logger.Warn("photostore: orphaned image after failed persist",
				slog.String("path", path), slog.String("error", derr.Error()))
		}
		s.mu.Unlock()
		return models.Photo{}, fmt.Errorf("photostore: commit: %w", err)
	}
	out := p.Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventCreated, Photo: out})
	return out, nil
}

// GetAll returns a copy of the list, newest first.
func (s *Store) GetAll() []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.photos)
}

// Favorites returns liked photos in list order.
func (s *Store) Favorites() []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Photo{}
	for _, p := range s.photos {
		if p.Liked {
			out = append(out, p.Clone())
		}
	}
	return out
}

// GetByID returns a copy of the record with id.
func (s *Store) GetByID(id string) (models.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Photo{}, false
	}
	return s.photos[i].Clone(), true
}

// FilePaths returns the set of image paths referenced by the index.
func (s *Store) FilePaths() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.photos))
	for _, p := range s.photos {
		out[p.FilePath] = true
	}
	return out
}

// ToggleLike flips the liked flag of id. An absent id is a no-op reported
// with ok=false.
func (s *Store) ToggleLike(ctx context.Context, id string) (models.Photo, bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Photo{}, false, nil
	}
	s.photos[i].Liked = !s.photos[i].Liked
	if err := s.persistLocked(ctx); err != nil {
		s.photos[i].Liked = !s.photos[i].Liked
		s.mu.Unlock()
		return models.Photo{}, true, fmt.Errorf("photostore: toggle like: %w", err)
	}
	out := s.photos[i].Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Photo: out})
	return out, true, nil
}

// SetAddress records a resolved address. It applies only while the record
// exists and carries coordinates; otherwise it reports false.
func (s *Store) SetAddress(ctx context.Context, id, address string) (bool, error) {
	if address == "" {
		return false, nil
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 || s.photos[i].Coords == nil {
		s.mu.Unlock()
		return false, nil
	}
	prev := s.photos[i].Address
	if prev == address {
		s.mu.Unlock()
		return true, nil
	}
	s.photos[i].Address = address
	if err := s.persistLocked(ctx); err != nil {
		s.photos[i].Address = prev
		s.mu.Unlock()
		return false, fmt.Errorf("photostore: set address: %w", err)
	}
	out := s.photos[i].Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, Photo: out})
	return true, nil
}

// Remove deletes the image (ignoring failures) and drops the record.
// Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	p := s.photos[i]
	if err := s.files.DeleteFile(ctx, p.FilePath); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("photostore: image delete failed",
			slog.String("id", id), slog.String("path", p.FilePath), slog.String("error", err.Error()))
	}
	s.photos = slices.Delete(s.photos, i, i+1)
	// the record stays removed in memory even if the flush fails; the next
	// successful persist writes it out
	if err := s.persistLocked(ctx); err != nil {
		s.mu.Unlock()
		return true, fmt.Errorf("photostore: remove: %w", err)
	}
	s.mu.Unlock()

	p.WebPath = ""
	s.notify(Event{Kind: EventDeleted, Photo: p})
	return true, nil
}

// Rehydrate rebuilds the webPath of id when it is missing. The file read
// happens outside the lock.
func (s *Store) Rehydrate(ctx context.Context, id string) (models.Photo, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Photo{}, false
	}
	if s.photos[i].WebPath != "" {
		out := s.photos[i].Clone()
		s.mu.Unlock()
		return out, true
	}
	path := s.photos[i].FilePath
	s.mu.Unlock()

	data, err := s.files.ReadFileBytes(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()
	i = s.indexOf(id)
	if i < 0 {
		return models.Photo{}, false
	}
	if err != nil {
		s.logger.Debug("photostore: rehydrate failed", slog.String("id", id), slog.String("error", err.Error()))
	} else if s.photos[i].WebPath == "" {
		s.photos[i].WebPath = DataURI(data)
	}
	return s.photos[i].Clone(), true
}

// Persist flushes the full list to the key-value store.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := Marshal(s.photos)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := s.kv.Set(ctx, IndexKey, string(data)); err != nil {
		return fmt.Errorf("persist: %w: %w", apperr.ErrStorage, err)
	}
	return nil
}

// Marshal encodes photos in the persisted layout, without webPath.
func Marshal(photos []models.Photo) ([]byte, error) {
	recs := make([]record, len(photos))
	for i, p := range photos {
		recs[i] = record{
			ID:        p.ID,
			FilePath:  p.FilePath,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
			Liked:     p.Liked,
			Coords:    p.Coords,
			Address:   p.Address,
		}
	}
	return json.Marshal(recs)
}

// DataURI encodes an image as a displayable data URI.
func DataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.photos, func(p models.Photo) bool { return p.ID == id })
}

func (s *Store) newID() string {
	for {
		id := uuid.NewString()
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *Store) notify(e Event) {
	for _, n := range s.notifiers {
		n.Notify(e)
	}
}

func asStorage(err error) error {
	if errors.Is(err, apperr.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
}

func cloneAll(photos []models.Photo) []models.Photo {
	out := make([]models.Photo, len(photos))
	for i, p := range photos {
		out[i] = p.Clone()
	}
	return out
}
