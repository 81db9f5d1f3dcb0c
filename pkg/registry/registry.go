package registry

import (
	"github.com/spf13/cobra"
)

// CommandRegistry collects subcommands so that each command file can
// register itself from init() and the parent only has to call FillCommands.
type CommandRegistry struct {
	registrars []func(parent *cobra.Command)
}

// Register adds a function that attaches subcommands to the parent.
func (r *CommandRegistry) Register(registrar func(parent *cobra.Command)) {
	r.registrars = append(r.registrars, registrar)
}

// FromGetter registers a function that builds a single subcommand.
func (r *CommandRegistry) FromGetter(getter func() *cobra.Command) {
	r.Register(func(parent *cobra.Command) {
		parent.AddCommand(getter())
	})
}

// FillCommands attaches every registered subcommand to parent.
func (r *CommandRegistry) FillCommands(parent *cobra.Command) {
	for _, registrar := range r.registrars {
		registrar(parent)
	}
}

// GetCommand fills parent and returns it.
func (r *CommandRegistry) GetCommand(parent *cobra.Command) *cobra.Command {
	r.FillCommands(parent)
	return parent
}
