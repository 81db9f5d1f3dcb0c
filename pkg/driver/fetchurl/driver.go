package fetchurl

import (
	"context"
	"errors"
	"io"
	"strings"

	"tilepipe/pkg/driver"
)

// DefaultAlgo is assumed for hashes given without an "algo:" prefix.
const DefaultAlgo = "sha256"

var ErrNoURLs = errors.New("no URLs provided")

// FetchOptions configures a download operation
type FetchOptions struct {
	// URLs to try downloading from (in order)
	URLs []string
	// Hash algorithm (e.g., "sha256", "sha512")
	Algo string
	// Expected hash value
	Hash string
	// Output destination
	Out io.Writer
}

// Driver provides hash-verified downloads
type Driver interface {
	// Fetch downloads a file with hash verification
	// Tries URLs in order until one succeeds
	Fetch(ctx context.Context, opts FetchOptions) error
}

// Fetch downloads with the active driver.
func Fetch(ctx context.Context, opts FetchOptions) error {
	d, err := driver.Get[Driver](ctx)
	if err != nil {
		return err
	}
	return d.Fetch(ctx, opts)
}

// ParseHash splits "sha512:abcd" into its algorithm and digest. A bare
// digest is taken as sha256.
func ParseHash(s string) (algo, hash string) {
	if a, h, ok := strings.Cut(s, ":"); ok {
		return strings.ToLower(a), h
	}
	return DefaultAlgo, s
}
