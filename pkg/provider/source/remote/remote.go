package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	fetchurldriver "tilepipe/pkg/driver/fetchurl"
	"tilepipe/pkg/driver/httpclient"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/provider"
	"tilepipe/pkg/provider/source"
)

var ErrHTTPStatus = errors.New("unexpected HTTP status")

func init() {
	provider.Register[source.Resolver](&Resolver{})
}

// Resolver downloads http and https sources into the data directory.
type Resolver struct{}

func (r *Resolver) Name() string { return "remote" }

func (r *Resolver) Detect(ctx context.Context, ref string) (bool, error) {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"), nil
}

func (r *Resolver) Resolve(ctx context.Context, ref string, opts source.Options) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", source.ErrUnsupported, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("%w: %s has no file name", source.ErrUnsupported, ref)
	}
	dir := opts.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	logger := logging.GetLogger(ctx)
	if opts.Hash != "" {
		algo, hash := fetchurldriver.ParseHash(opts.Hash)
		logger.Info("downloading source", "url", ref, "algo", algo, "dest", dest)
		err = fetchurldriver.Fetch(ctx, fetchurldriver.FetchOptions{
			URLs: []string{ref},
			Algo: algo,
			Hash: hash,
			Out:  tmp,
		})
	} else {
		logger.Info("downloading source", "url", ref, "dest", dest)
		err = download(ctx, ref, tmp)
	}
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref, err)
	}
	if closeErr != nil {
		return "", closeErr
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	return filepath.Abs(dest)
}

func download(ctx context.Context, ref string, out io.Writer) error {
	client, err := httpclient.Client(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
