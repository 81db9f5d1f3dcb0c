package registry

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestFillCommands(t *testing.T) {
	var r CommandRegistry
	r.FromGetter(func() *cobra.Command { return &cobra.Command{Use: "warp"} })
	r.Register(func(parent *cobra.Command) {
		parent.AddCommand(&cobra.Command{Use: "tiles"}, &cobra.Command{Use: "serve"})
	})

	root := r.GetCommand(&cobra.Command{Use: "tilepipe"})

	got := map[string]bool{}
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range []string{"warp", "tiles", "serve"} {
		if !got[name] {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}
