package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrWidgetNotFound is returned for an unknown or unmounted widget ID.
var ErrWidgetNotFound = errors.New("widget not found")

// IDPrefix starts every widget ID.
const IDPrefix = "wgt_"

// Registry owns mounted widgets. A widget's state lives from Mount to Unmount.
type Registry struct {
	cfg Config

	mu      sync.RWMutex
	widgets map[string]*Widget
}

// NewRegistry creates a registry whose widgets share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg,
		widgets: make(map[string]*Widget),
	}
}

// Mount creates a widget with one empty waypoint.
func (r *Registry) Mount() *Widget {
	w := New(IDPrefix+uuid.New().String(), r.cfg)

	r.mu.Lock()
	r.widgets[w.ID()] = w
	r.mu.Unlock()

	r.cfg.Logger.Info().Str("widget_id", w.ID()).Msg("widget mounted")
	return w
}

// Get returns the widget with the given ID.
func (r *Registry) Get(id string) (*Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.widgets[id]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	return w, nil
}

// Unmount removes the widget and waits for its running computations.
func (r *Registry) Unmount(id string) error {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()

	if !ok {
		return ErrWidgetNotFound
	}

	w.Close()
	r.cfg.Logger.Info().Str("widget_id", id).Msg("widget unmounted")
	return nil
}

// Len returns the number of mounted widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Shutdown unmounts every widget, waiting for running computations until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	widgets := make([]*Widget, 0, len(r.widgets))
	for _, w := range r.widgets {
		widgets = append(widgets, w)
	}
	r.widgets = make(map[string]*Widget)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, w := range widgets {
			wg.Add(1)
			go func(w *Widget) {
				defer wg.Done()
				w.Close()
			}(w)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
