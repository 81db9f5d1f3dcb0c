package layers

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"tilepipe/cmd/tilepipe/common"
	"tilepipe/pkg/catalog"
	"tilepipe/pkg/registry"
	"tilepipe/pkg/server"
	"tilepipe/pkg/tiles"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"
)

var Registry registry.CommandRegistry

func GetCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List generated layers and their zoom levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.Config(cmd)
			scheme, err := tiles.ParseScheme(cfg.Tiles.Scheme)
			if err != nil {
				return err
			}
			srv := &server.Server{Layout: tiles.Layout{TileDir: cfg.TileDir, Scheme: scheme}}
			if store, err := catalog.Open(cfg.CatalogPath()); err == nil {
				defer store.Close()
				srv.Store = store
			}
			layers, err := srv.Layers(cmd.Context())
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(layers)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LAYER\tZOOMS\tRUNS\tFAILURES\tUPDATED")
			for _, l := range layers {
				updated := "-"
				if !l.UpdatedAt.IsZero() {
					updated = l.UpdatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", l.Name, formatZooms(l.Zooms), l.Runs, l.Failures, updated)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	cmd.AddCommand(runsCommand())
	return Registry.GetCommand(cmd)
}

func runsCommand() *cobra.Command {
	var limit int
	var pick bool

	cmd := &cobra.Command{
		Use:   "runs [layer]",
		Short: "Show the tiling history recorded in the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(common.Config(cmd).CatalogPath())
			if err != nil {
				return err
			}
			defer store.Close()

			layer := ""
			if len(args) > 0 {
				layer = args[0]
			}
			runs, err := store.Runs(cmd.Context(), layer, limit)
			if err != nil {
				return err
			}
			if pick {
				return pickRun(cmd, runs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLAYER\tZOOM\tSTATUS\tSTARTED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Layer, r.Zoom, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose a run interactively and print its details")
	return cmd
}

func pickRun(cmd *cobra.Command, runs []catalog.Run) error {
	if len(runs) == 0 {
		return nil
	}
	idx, err := fuzzyfinder.Find(
		runs,
		func(i int) string {
			return runLabel(runs[i])
		},
		fuzzyfinder.WithPreviewWindow(func(i, width, height int) string {
			if i == -1 {
				return ""
			}
			return describeRun(runs[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil
		}
		return fmt.Errorf("fuzzy finder failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeRun(runs[idx]))
	return nil
}

func runLabel(r catalog.Run) string {
	return fmt.Sprintf("#%d %s z%d %s", r.ID, r.Layer, r.Zoom, r.Status)
}

func describeRun(r catalog.Run) string {
	finished := "-"
	duration := "-"
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.Local().Format("2006-01-02 15:04:05")
		duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
	}
	out := fmt.Sprintf("Run:      #%d\nLayer:    %s\nZoom:     %d\nStatus:   %s\nSource:   %s\nStarted:  %s\nFinished: %s\nDuration: %s",
		r.ID, r.Layer, r.Zoom, r.Status, r.Source, r.StartedAt.Local().Format("2006-01-02 15:04:05"), finished, duration)
	if r.Error != "" {
		out += "\n\nError:\n" + r.Error
	}
	return out
}

func formatZooms(zooms []int) string {
	if len(zooms) == 0 {
		return "-"
	}
	sorted := slices.Clone(zooms)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, z := range sorted {
		parts[i] = fmt.Sprint(z)
	}
	return strings.Join(parts, ",")
}
