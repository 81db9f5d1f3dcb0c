package fetchurl

import (
	"context"
	"fmt"

	"github.com/lucasew/fetchurl"
	"tilepipe/pkg/driver"
	fetchurldriver "tilepipe/pkg/driver/fetchurl"
	"tilepipe/pkg/driver/httpclient"
	"tilepipe/pkg/logging"
)

func init() {
	driver.Register[fetchurldriver.Driver](&Provider{})
}

type Provider struct{}

func (p *Provider) ID() string         { return "fetchurl" }
func (p *Provider) Name() string       { return "fetchurl" }
func (p *Provider) DefaultWeight() int { return driver.DefaultWeight }

func (p *Provider) CheckCompatibility(ctx context.Context) error {
	return nil
}

func (p *Provider) New(ctx context.Context) (fetchurldriver.Driver, error) {
	// Without an httpclient driver fetchurl builds its own default client.
	client, err := httpclient.Client(ctx)
	if err != nil {
		logging.GetLogger(ctx).Debug("no http client driver, using fetchurl default", "error", err)
		client = nil
	}
	return &Driver{
		fetcher: fetchurl.NewFetcher(client),
	}, nil
}

type Driver struct {
	fetcher *fetchurl.Fetcher
}

func (d *Driver) Fetch(ctx context.Context, opts fetchurldriver.FetchOptions) error {
	if len(opts.URLs) == 0 {
		return fetchurldriver.ErrNoURLs
	}
	if opts.Out == nil {
		return fmt.Errorf("no output writer provided")
	}
	logging.GetLogger(ctx).Debug("fetching", "urls", opts.URLs, "algo", opts.Algo)
	return d.fetcher.Fetch(ctx, fetchurl.FetchOptions{
		URLs: opts.URLs,
		Algo: opts.Algo,
		Hash: opts.Hash,
		Out:  opts.Out,
	})
}
