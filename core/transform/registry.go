package transform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/core/dataset"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger *zap.Logger
	// Filter configures the built-in filter transform.
	Filter *FilterOptions
	// DisableEvents skips creating the event bus.
	DisableEvents bool
}

// DefaultRegistryOptions returns the default registry configuration.
func DefaultRegistryOptions() *RegistryOptions {
	return &RegistryOptions{
		Logger: zap.NewNop(),
		Filter: DefaultFilterOptions(),
	}
}

// Registry dispatches transforms by type and runs transform chains. The
// built-in filter transform is registered on creation.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
	bus        *events.TypedEventBus[Event]
	logger     *zap.Logger
	newID      func() string
}

// NewRegistry creates a registry holding the built-in transforms.
func NewRegistry(opts *RegistryOptions) (*Registry, error) {
	if opts == nil {
		opts = DefaultRegistryOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		transforms: make(map[string]Transform),
		logger:     logger,
		newID:      func() string { return uuid.New().String() },
	}

	if !opts.DisableEvents {
		bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("could not initialize event bus: %w", err)
		}
		r.bus = bus
	}

	filterOpts := DefaultFilterOptions()
	if opts.Filter != nil {
		filterOpts = opts.Filter
	}
	fo := *filterOpts
	if fo.Logger == nil {
		fo.Logger = logger
	}
	if err := r.Register(NewFilterTransform(&fo)); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a transform under its type tag.
func (r *Registry) Register(t Transform) error {
	if t == nil || t.Type() == "" {
		return fmt.Errorf("transform must have a type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[t.Type()]; exists {
		return fmt.Errorf("transform %q is already registered", t.Type())
	}
	r.transforms[t.Type()] = t
	r.logger.Info("Registered transform", zap.String("type", t.Type()))
	return nil
}

// Get returns the transform registered under typ. A type without a namespace
// (such as "filter") also matches the built-in "sift:" transforms.
func (r *Registry) Get(typ string) (Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.transforms[typ]; ok {
		return t, true
	}
	if !strings.Contains(typ, ":") {
		t, ok := r.transforms[TypePrefix+typ]
		return t, ok
	}
	return nil, false
}

// Types lists the registered transform types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.transforms))
	for typ := range r.transforms {
		types = append(types, typ)
	}
	return types
}

// Subscribe registers cb for events of type event and returns a function
// that removes the subscription.
func (r *Registry) Subscribe(event EventType, cb EventCallback) func() {
	if r.bus == nil {
		return func() {}
	}
	return r.bus.Subscribe(string(event), func(ctx context.Context, ev Event) error {
		return cb(ctx, ev)
	})
}

// Apply runs the transforms in order, feeding each result to the next step
// as a source with the same layout. With no steps the source rows are
// returned as they are. The first failing step aborts the chain.
func (r *Registry) Apply(ctx context.Context, source dataset.Source, steps ...Option) (*Result, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if len(steps) == 0 {
		return &Result{Data: allRows(source)}, nil
	}

	// Resolve every step first so an unknown type fails before any work.
	chain := make([]Transform, len(steps))
	for i, step := range steps {
		t, ok := r.Get(step.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, step.Type)
		}
		chain[i] = t
	}

	current := source
	var result *Result
	for i, t := range chain {
		src := current
		res, err := r.withEventEmission(i, t, src, func() (*Result, error) {
			return t.Transform(ctx, Params{Source: src, Config: steps[i].Config})
		})
		if err != nil {
			return nil, err
		}
		result = res

		if i < len(chain)-1 {
			next, err := dataset.NewSourceLike(current, res.Data)
			if err != nil {
				return nil, fmt.Errorf("transform %q produced an unusable result: %w", t.Type(), err)
			}
			current = next
		}
	}
	return result, nil
}

func allRows(source dataset.Source) []dataset.RawRow {
	rows := make([]dataset.RawRow, 0, source.HeaderCount()+source.Count())
	for i := 0; i < source.HeaderCount(); i++ {
		rows = append(rows, source.RawHeaderItem(i))
	}
	for i := 0; i < source.Count(); i++ {
		rows = append(rows, source.RawDataItem(i))
	}
	return rows
}
