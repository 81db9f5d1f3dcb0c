package mosaic

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/mosaic"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/tiles"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var maxSize int

	cmd := &cobra.Command{
		Use:   "mosaic <layer> <zoom> <output>",
		Short: "Stitch one zoom level of a layer into a single image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.Config(cmd)
			zooms, err := common.ParseZooms(args[1])
			if err != nil {
				return err
			}
			if len(zooms) != 1 {
				return tiles.ErrInvalidZoom
			}
			scheme, err := tiles.ParseScheme(cfg.Tiles.Scheme)
			if err != nil {
				return err
			}
			m, err := mosaic.Build(tiles.Layout{TileDir: cfg.TileDir, Scheme: scheme}, args[0], zooms[0], mosaic.Options{MaxSize: maxSize})
			if err != nil {
				return err
			}
			if err := m.Save(args[2]); err != nil {
				return err
			}
			b := m.Image.Bounds()
			cmd.Printf("%s: %d tiles, %dx%d, lon %.5f..%.5f lat %.5f..%.5f\n",
				args[2], m.Tiles, b.Dx(), b.Dy(),
				m.Bounds.Min.Lon(), m.Bounds.Max.Lon(), m.Bounds.Min.Lat(), m.Bounds.Max.Lat())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSize, "max-size", mosaic.DefaultMaxSize, "Longest side of the output in pixels (negative for full size)")
	return Registry.GetCommand(cmd)
}
