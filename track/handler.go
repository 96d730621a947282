package track

import (
	"context"
	"sync"

	"github.com/helical/genefold/errors"
)

// JobHandler executes one job type. Domain packages implement this so the
// tracking infrastructure stays decoupled from domain logic: handlers decode
// their own payloads and drive the job through the tracker, and must observe
// ctx.Done() between interactions so cancellation lands at a safe checkpoint.
type JobHandler interface {
	Execute(ctx context.Context, job *Job) error

	// Name identifies the handler for registration and routing,
	// e.g. "ncbi.fetch", "roi.scan", "portal.predict".
	Name() string
}

// HandlerRegistry routes jobs to handlers by name. Safe for concurrent use.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]JobHandler)}
}

// Register adds a handler under its name. Panics on a duplicate name since
// that is always a wiring bug.
func (r *HandlerRegistry) Register(handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		panic("handler already registered for name: " + name)
	}
	r.handlers[name] = handler
}

// Get retrieves the handler for a name, or nil.
func (r *HandlerRegistry) Get(name string) JobHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}

// Has checks whether a handler is registered.
func (r *HandlerRegistry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns all registered handler names.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Execute dispatches a job to its registered handler.
func (r *HandlerRegistry) Execute(ctx context.Context, job *Job) error {
	if job.HandlerName == "" {
		return errors.New("job missing handler_name")
	}
	handler := r.Get(job.HandlerName)
	if handler == nil {
		return errors.Newf("no handler registered for name: %s", job.HandlerName)
	}
	return handler.Execute(ctx, job)
}
