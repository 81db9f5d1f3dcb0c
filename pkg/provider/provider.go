package provider

import (
	"context"
	"reflect"
)

// Provider is the base interface for pluggable handlers that are picked by
// the input they are given. Unlike drivers (which are chosen once per
// environment), providers are aggregated and asked in turn.
type Provider interface {
	// Name returns the unique identifier of the provider.
	// Examples: "local", "http".
	Name() string

	// Detect checks if this provider can handle ref, typically by looking
	// at its scheme or extension.
	Detect(ctx context.Context, ref string) (bool, error)
}

// providers holds the registry of implementations.
// Since registration happens only during init(), we don't need mutexes for runtime access.
var providers = map[reflect.Type][]any{}

// Register adds a provider implementation to the global registry for a specific interface T.
func Register[T any](p T) {
	t := reflect.TypeFor[T]()
	providers[t] = append(providers[t], p)
}

// List returns all registered providers for the interface T.
func List[T any]() []T {
	t := reflect.TypeFor[T]()
	rawList := providers[t]

	result := make([]T, len(rawList))
	for i, raw := range rawList {
		result[i] = raw.(T)
	}
	return result
}

// First returns the first registered provider of T that detects ref.
func First[T Provider](ctx context.Context, ref string) (T, bool, error) {
	var zero T
	for _, p := range List[T]() {
		ok, err := p.Detect(ctx, ref)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return p, true, nil
		}
	}
	return zero, false, nil
}
