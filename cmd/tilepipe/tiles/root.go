package tiles

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/pipeline"
	"tilepipe/pkg/registry"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var layer string
	var scheme string

	cmd := &cobra.Command{
		Use:   "tiles <geotiff>",
		Short: "Generate a tile pyramid for a Web Mercator raster",
		Long: `Generate tiles with gdal2tiles into {tile_dir}/{layer}/{zoom}, one
zoom level at a time in the order given. The first failing level stops
the run; levels already written are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *common.Config(cmd)
			if scheme != "" {
				cfg.Tiles.Scheme = scheme
			}
			zooms, err := common.Zooms(cmd, "zoom")
			if err != nil {
				return err
			}
			gen, err := pipeline.GeneratorFromConfig(&cfg)
			if err != nil {
				return err
			}
			observers, cleanup := common.Observers(cmd, args[0], len(zooms))
			defer cleanup()
			gen.Observers = observers

			if err := gen.Generate(cmd.Context(), args[0], layer, zooms); err != nil {
				return err
			}
			cmd.Printf("layer %s: zooms %v in %s\n", layer, zooms, gen.TileDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&layer, "layer", "l", "", "Layer name (required)")
	cmd.Flags().StringP("zoom", "z", "", "Zoom levels, e.g. 12,13,14 or 12-14 (default from config)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Tile numbering: tms or xyz (default from config)")
	_ = cmd.MarkFlagRequired("layer")
	return Registry.GetCommand(cmd)
}
