package warp

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/warp"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var resampling string
	var format string

	cmd := &cobra.Command{
		Use:   "warp <src> <dst>",
		Short: "Reproject a raster to Web Mercator (EPSG:3857)",
		Long: `Reproject a raster to Web Mercator keeping every band.

Nearest neighbour resampling is used unless --resampling says otherwise,
so categorical values are never blended.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.Config(cmd)
			if resampling == "" {
				resampling = cfg.Warp.Resampling
			}
			if format == "" {
				format = cfg.Warp.OutputFormat
			}
			r, err := warp.ParseResampling(resampling)
			if err != nil {
				return err
			}
			reprojector := warp.Reprojector{Resampling: r, OutputFormat: format}
			if err := reprojector.Warp(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("%s -> %s (%s)\n", args[0], args[1], warp.WebMercator)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resampling, "resampling", "r", "", "Resampling method (default from config, near)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "GDAL output driver (default: same as source)")
	return Registry.GetCommand(cmd)
}
