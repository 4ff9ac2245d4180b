package geocode

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/geocam/internal/models"
)

// Resolver looks up an address for a coordinate pair.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (string, bool)
}

// Records is the slice of the photo store the enricher reads and updates.
type Records interface {
	GetByID(id string) (models.Photo, bool)
	SetAddress(ctx context.Context, id, address string) (bool, error)
}

// Enricher runs one background address lookup per photo id. Completions
// are applied by id, so a record deleted or changed meanwhile is handled
// by the store rather than through a stale copy.
type Enricher struct {
	resolver Resolver
	records  Records
	logger   *slog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

// NewEnricher creates an enricher. Close it to cancel outstanding lookups.
func NewEnricher(resolver Resolver, records Records, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Enricher{
		resolver: resolver,
		records:  records,
		logger:   logger,
		ctx:      ctx,
		stop:     stop,
		tasks:    make(map[string]*task),
	}
}

// Request starts a lookup for id if the record has coordinates, has no
// address yet, and no lookup for it is already running. It reports whether
// a task was started.
func (e *Enricher) Request(id string) bool {
	p, ok := e.records.GetByID(id)
	if !ok || !p.NeedsAddress() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if _, running := e.tasks[id]; running {
		return false
	}
	ctx, cancel := context.WithCancel(e.ctx)
	t := &task{cancel: cancel}
	e.tasks[id] = t
	e.wg.Add(1)
	go e.run(ctx, t, id, *p.Coords)
	return true
}

// RequestMissing starts lookups for every photo in photos that needs one.
func (e *Enricher) RequestMissing(photos []models.Photo) int {
	n := 0
	for _, p := range photos {
		if p.NeedsAddress() && e.Request(p.ID) {
			n++
		}
	}
	return n
}

// Cancel aborts the lookup for id, if any.
func (e *Enricher) Cancel(id string) {
	e.mu.Lock()
	t, ok := e.tasks[id]
	delete(e.tasks, id)
	e.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// Pending reports the number of lookups in flight.
func (e *Enricher) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// Close cancels all lookups and waits for them to finish.
func (e *Enricher) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.stop()
	e.wg.Wait()
}

type task struct {
	cancel context.CancelFunc
}

func (e *Enricher) run(ctx context.Context, t *task, id string, c models.Coords) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if e.tasks[id] == t {
			delete(e.tasks, id)
		}
		e.mu.Unlock()
		t.cancel()
	}()

	addr, ok := e.resolver.Resolve(ctx, c.Lat, c.Lng)
	if !ok || ctx.Err() != nil {
		return
	}
	applied, err := e.records.SetAddress(ctx, id, addr)
	if err != nil {
		e.logger.Warn("geocode: store address failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	if applied {
		e.logger.Debug("geocode: address resolved", slog.String("id", id))
	}
}
