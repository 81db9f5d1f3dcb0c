package serve

import (
	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/catalog"
	"tilepipe/pkg/logging"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/server"
	"tilepipe/pkg/tiles"

	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var addr string
	var socket string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tiles over HTTP and relay run events",
		Long: `Serve {tile_dir} at /tiles/{layer}/{z}/{x}/{y}.{ext}, the layer list at
/layers and run events at /ws. Tiling commands report progress through
the unix socket; sockets passed by systemd take precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.Config(cmd)
			ctx := cmd.Context()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if socket == "" {
				socket = cfg.SocketPath()
			}
			scheme, err := tiles.ParseScheme(cfg.Tiles.Scheme)
			if err != nil {
				return err
			}

			store, err := catalog.Open(cfg.CatalogPath())
			if err != nil {
				logging.GetLogger(ctx).Warn("catalog unavailable, /layers reports the filesystem only", "error", err)
				store = nil
			} else {
				defer store.Close()
			}

			srv := server.New(tiles.Layout{TileDir: cfg.TileDir, Scheme: scheme}, store)
			listeners, err := server.Listen(addr, socket)
			if err != nil {
				return err
			}
			return server.Serve(ctx, srv.Handler(), listeners)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "TCP address to listen on (default from config, :8000)")
	cmd.Flags().StringVar(&socket, "socket", "", "Unix socket for run events (default $XDG_RUNTIME_DIR/tilepipe.sock)")
	return Registry.GetCommand(cmd)
}
