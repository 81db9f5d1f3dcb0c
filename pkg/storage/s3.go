// Package storage publishes tile trees to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/paulmach/orb/maptile"

	"tilepipe/pkg/config"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/tiles"
)

var ErrNoBucket = errors.New("no bucket configured")

// CacheControl is attached to every uploaded tile.
const CacheControl = "public, max-age=86400"

// ObjectAPI is the subset of the S3 client used for publishing.
type ObjectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client. A custom endpoint (MinIO, Ceph, ...)
// switches to path-style addressing.
func NewClient(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Publisher uploads tiles in XYZ numbering, {Prefix}/{layer}/{z}/{x}/{y}.{ext},
// whatever scheme they were generated with.
type Publisher struct {
	Client ObjectAPI
	Bucket string
	Prefix string
	Layout tiles.Layout
	// Progress, when set, is called after every upload.
	Progress func(done, total int)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	if p.Bucket == "" {
		return ErrNoBucket
	}
	if _, err := p.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.Bucket)}); err == nil {
		return nil
	}
	if _, err := p.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(p.Bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.Bucket, err)
	}
	logging.GetLogger(ctx).Info("created bucket", "bucket", p.Bucket)
	return nil
}

// Publish uploads the tiles of layer at the given zoom levels, or at every
// zoom level present on disk when zooms is empty. It stops at the first
// failed upload and returns the number of objects written.
func (p *Publisher) Publish(ctx context.Context, layer string, zooms []int) (int, error) {
	if err := p.EnsureBucket(ctx); err != nil {
		return 0, err
	}
	if len(zooms) == 0 {
		var err error
		if zooms, err = p.zoomsOnDisk(layer); err != nil {
			return 0, err
		}
	}

	var entries []tiles.Entry
	for _, z := range zooms {
		found, err := p.Layout.Tiles(layer, z)
		if err != nil {
			return 0, err
		}
		entries = append(entries, found...)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: %s", tiles.ErrTileNotFound, layer)
	}

	logger := logging.GetLogger(ctx)
	for i, e := range entries {
		key := ObjectKey(p.Prefix, layer, e.Tile, strings.TrimPrefix(filepath.Ext(e.Path), "."))
		if err := p.put(ctx, key, e.Path); err != nil {
			return i, err
		}
		logger.Debug("uploaded", "key", key)
		if p.Progress != nil {
			p.Progress(i+1, len(entries))
		}
	}
	return len(entries), nil
}

func (p *Publisher) zoomsOnDisk(layer string) ([]int, error) {
	layers, err := p.Layout.Layers()
	if err != nil {
		return nil, err
	}
	for _, l := range layers {
		if l.Name == layer {
			return l.Zooms, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tiles.ErrTileNotFound, layer)
}

func (p *Publisher) put(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.Bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(ContentType(file)),
		CacheControl: aws.String(CacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the key of tile t.
func ObjectKey(prefix, layer string, t maptile.Tile, ext string) string {
	return path.Join(prefix, layer,
		strconv.Itoa(int(t.Z)),
		strconv.FormatUint(uint64(t.X), 10),
		strconv.FormatUint(uint64(t.Y), 10)+"."+ext)
}

// ContentType maps a tile file to its MIME type.
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
