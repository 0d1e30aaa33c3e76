package main

import (
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/c8ytasks/internal/tasks"
)

// newTaskCmd exposes a task descriptor as a subcommand. Only flags the user
// set are passed on; the registry fills in the rest from the loaded settings.
func newTaskCmd(d *tasks.Dispatcher, desc tasks.Descriptor) *cobra.Command {
	cmd := &cobra.Command{
		Use:     desc.Name,
		Aliases: desc.Aliases,
		Short:   desc.Short,
		Long:    desc.Long,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tasks.Args{}
			for _, p := range desc.Params {
				if cmd.Flags().Changed(p.Name) {
					in[p.Name], _ = cmd.Flags().GetString(p.Name)
				}
			}
			if desc.Positional != "" && len(args) == 1 {
				in[desc.Positional] = args[0]
			}
			return d.Registry().Invoke(cmd.Context(), desc.Name, in)
		},
	}
	if desc.Positional != "" {
		cmd.Use = desc.Name + " [" + desc.Positional + "]"
		cmd.Args = cobra.MaximumNArgs(1)
	}
	for _, p := range desc.Params {
		cmd.Flags().String(p.Name, p.Default, p.Help)
	}
	return cmd
}
