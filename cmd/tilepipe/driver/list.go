package driver

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"tilepipe/pkg/driver"

	"github.com/spf13/cobra"
)

func init() {
	Registry.Register(func(c *cobra.Command) {
		var format string

		cmd := &cobra.Command{
			Use:   "list",
			Short: "List registered drivers and whether they can run here",
			RunE: func(cmd *cobra.Command, args []string) error {
				statuses := driver.List(cmd.Context())
				if format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(statuses)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INTERFACE\tID\tWEIGHT\tSTATUS")
				for _, s := range statuses {
					status := "ok"
					if !s.Compatible {
						status = s.Reason
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Interface, s.ID, s.Weight, status)
				}
				return w.Flush()
			},
		}
		cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
		c.AddCommand(cmd)
	})
}
