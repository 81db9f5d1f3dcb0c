package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type greeter interface {
	Greet() string
}

type staticGreeter string

func (g staticGreeter) Greet() string { return string(g) }

type greeterProvider struct {
	id     string
	weight int
	err    error
}

func (p greeterProvider) ID() string         { return p.id }
func (p greeterProvider) Name() string       { return p.id }
func (p greeterProvider) DefaultWeight() int { return p.weight }
func (p greeterProvider) CheckCompatibility(ctx context.Context) error {
	return p.err
}
func (p greeterProvider) New(ctx context.Context) (greeter, error) {
	return staticGreeter(p.id), nil
}

func TestGetPicksHeaviestCompatible(t *testing.T) {
	Register[greeter](greeterProvider{id: "light", weight: 10})
	Register[greeter](greeterProvider{id: "heavy", weight: 90, err: fmt.Errorf("%w: missing", ErrIncompatible)})
	Register[greeter](greeterProvider{id: "medium", weight: 50})

	ctx := context.Background()
	g, err := Get[greeter](ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if g.Greet() != "medium" {
		t.Errorf("expected medium, got %s", g.Greet())
	}

	SetWeight("light", 70)
	defer SetWeight("light", 10)
	g, err = Get[greeter](ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if g.Greet() != "light" {
		t.Errorf("expected weight override to select light, got %s", g.Greet())
	}

	found := false
	for _, s := range List(ctx) {
		if s.ID == "heavy" {
			found = true
			if s.Compatible {
				t.Errorf("heavy should be reported incompatible")
			}
		}
	}
	if !found {
		t.Errorf("List did not report heavy provider")
	}
}

type unregistered interface {
	Nothing()
}

func TestGetWithoutProviders(t *testing.T) {
	_, err := Get[unregistered](context.Background())
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("expected ErrNoDriver, got %v", err)
	}
}
