package publish

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/catalog"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/storage"
	"tilepipe/pkg/tiles"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var bucket string
	var prefix string

	cmd := &cobra.Command{
		Use:   "publish <layer>",
		Short: "Upload the tiles of a layer to S3 compatible storage",
		Long: `Upload tiles as {prefix}/{layer}/{z}/{x}/{y}.{ext} in XYZ numbering.
Every zoom level on disk is uploaded unless --zoom narrows it down.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.Config(cmd)
			ctx := cmd.Context()
			layer := args[0]
			if err := tiles.ValidateLayer(layer); err != nil {
				return err
			}
			zoomFlag, _ := cmd.Flags().GetString("zoom")
			zooms, err := common.ParseZooms(zoomFlag)
			if err != nil {
				return err
			}
			s3cfg := cfg.S3
			if bucket != "" {
				s3cfg.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				s3cfg.Prefix = prefix
			}
			scheme, err := tiles.ParseScheme(cfg.Tiles.Scheme)
			if err != nil {
				return err
			}
			client, err := storage.NewClient(ctx, s3cfg)
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			pub := &storage.Publisher{
				Client: client,
				Bucket: s3cfg.Bucket,
				Prefix: s3cfg.Prefix,
				Layout: tiles.Layout{TileDir: cfg.TileDir, Scheme: scheme},
				Progress: func(done, total int) {
					if bar == nil {
						bar = common.NewBar(cmd.ErrOrStderr(), total, "upload "+layer)
					}
					_ = bar.Set(done)
				},
			}
			n, err := pub.Publish(ctx, layer, zooms)
			if err != nil {
				return err
			}

			if store, err := catalog.Open(cfg.CatalogPath()); err == nil {
				defer store.Close()
				if err := store.RecordPublication(ctx, catalog.Publication{Layer: layer, Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix, Objects: n}); err != nil {
					logging.GetLogger(ctx).Warn("failed to record publication", "error", err)
				}
			}
			cmd.Printf("published %d tiles of %s to s3://%s/%s\n", n, layer, s3cfg.Bucket, s3cfg.Prefix)
			return nil
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Target bucket (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default from config)")
	cmd.Flags().StringP("zoom", "z", "", "Zoom levels to upload (default: all on disk)")
	return Registry.GetCommand(cmd)
}
