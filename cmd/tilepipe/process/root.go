package process

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/pipeline"
	"tilepipe/pkg/registry"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var layer string
	var hash string

	cmd := &cobra.Command{
		Use:   "process <source>",
		Short: "Fetch, reproject and tile a raster in one go",
		Long: `Resolve a local path, zip archive or URL, reproject it to Web Mercator
next to the other data files and generate its tiles. The layer name
defaults to the lower-cased file name without extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zooms, err := common.Zooms(cmd, "zoom")
			if err != nil {
				return err
			}
			observers, cleanup := common.Observers(cmd, args[0], len(zooms))
			defer cleanup()

			p, err := pipeline.FromConfig(common.Config(cmd), observers...)
			if err != nil {
				return err
			}
			res, err := p.Process(cmd.Context(), pipeline.Request{
				Source: args[0],
				Hash:   hash,
				Layer:  layer,
				Zooms:  zooms,
			})
			if err != nil {
				return err
			}
			cmd.Printf("layer %s: zooms %v from %s\n", res.Layer, res.Zooms, res.Warped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&layer, "layer", "l", "", "Layer name (default: source file stem)")
	cmd.Flags().StringP("zoom", "z", "", "Zoom levels, e.g. 12,13,14 or 12-14 (default from config)")
	cmd.Flags().StringVar(&hash, "hash", "", "Expected hash of a downloaded source, algo:hex (e.g. sha256:...)")
	return Registry.GetCommand(cmd)
}
