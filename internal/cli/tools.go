package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Run one reload and list the registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer log.Close()

			p := opts.newPlatform(log.Zerolog())
			defer p.Close()

			snap := p.Reload(cmd.Context())
			if opts.jsonOutput {
				return printJSON(cmd, snap.Tools)
			}

			out := cmd.OutOrStdout()
			if len(snap.Tools) == 0 {
				fmt.Fprintln(out, "No tools registered")
				return nil
			}
			for _, tool := range snap.Tools {
				fmt.Fprintf(out, "%s (%s): %s\n", tool.Name, tool.PluginID, tool.Description)
			}
			return nil
		},
	}
}
