package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// DefaultWeight is the weight used by providers that have no reason to be
// preferred over others.
const DefaultWeight = 50

var (
	// ErrIncompatible marks a provider as not usable in the current environment.
	ErrIncompatible = errors.New("driver is incompatible")
	// ErrNoDriver is returned by Get when no registered provider is compatible.
	ErrNoDriver = errors.New("no compatible driver")
)

// Provider builds a driver implementing T.
type Provider[T any] interface {
	ID() string
	Name() string
	DefaultWeight() int
	CheckCompatibility(ctx context.Context) error
	New(ctx context.Context) (T, error)
}

type entry struct {
	id     string
	name   string
	weight func() int
	check  func(ctx context.Context) error
	build  func(ctx context.Context) (any, error)
}

var (
	mu        sync.RWMutex
	providers = map[reflect.Type][]entry{}
	weights   = map[string]int{}
)

// Register adds a provider for the driver interface T. Meant to be called from init().
func Register[T any](p Provider[T]) {
	t := reflect.TypeFor[T]()
	mu.Lock()
	defer mu.Unlock()
	providers[t] = append(providers[t], entry{
		id:     p.ID(),
		name:   p.Name(),
		weight: p.DefaultWeight,
		check:  p.CheckCompatibility,
		build: func(ctx context.Context) (any, error) {
			return p.New(ctx)
		},
	})
}

// SetWeight overrides the weight of the provider with the given ID.
func SetWeight(id string, weight int) {
	mu.Lock()
	defer mu.Unlock()
	weights[id] = weight
}

func (e entry) effectiveWeight() int {
	if w, ok := weights[e.id]; ok {
		return w
	}
	return e.weight()
}

func sorted(t reflect.Type) []entry {
	mu.RLock()
	list := append([]entry(nil), providers[t]...)
	mu.RUnlock()
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].effectiveWeight() > list[j].effectiveWeight()
	})
	return list
}

// Get returns a driver for T from the heaviest compatible provider.
func Get[T any](ctx context.Context) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	list := sorted(t)

	var reasons []error
	for _, e := range list {
		if err := e.check(ctx); err != nil {
			slog.Debug("driver incompatible", "driver", e.id, "error", err)
			reasons = append(reasons, fmt.Errorf("%s: %w", e.id, err))
			continue
		}
		raw, err := e.build(ctx)
		if err != nil {
			return zero, fmt.Errorf("failed to create driver %s: %w", e.id, err)
		}
		slog.Debug("driver selected", "interface", t.String(), "driver", e.id)
		return raw.(T), nil
	}
	if len(reasons) == 0 {
		return zero, fmt.Errorf("%w for %s: no providers registered", ErrNoDriver, t)
	}
	return zero, fmt.Errorf("%w for %s: %w", ErrNoDriver, t, errors.Join(reasons...))
}

// Status describes a registered provider for display.
type Status struct {
	Interface  string
	ID         string
	Name       string
	Weight     int
	Compatible bool
	Reason     string
}

// List reports every registered provider of every driver interface.
func List(ctx context.Context) []Status {
	mu.RLock()
	types := make([]reflect.Type, 0, len(providers))
	for t := range providers {
		types = append(types, t)
	}
	mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	var out []Status
	for _, t := range types {
		for _, e := range sorted(t) {
			s := Status{
				Interface:  t.String(),
				ID:         e.id,
				Name:       e.name,
				Weight:     e.effectiveWeight(),
				Compatible: true,
			}
			if err := e.check(ctx); err != nil {
				s.Compatible = false
				s.Reason = err.Error()
			}
			out = append(out, s)
		}
	}
	return out
}
