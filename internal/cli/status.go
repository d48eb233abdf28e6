package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arion-app/arion-plugins/pkg/diagnostics"
	"github.com/arion-app/arion-plugins/pkg/platform"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run one reload and report the plugin inventory",
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
				return printJSON(cmd, snap)
			}
			printStatus(cmd, snap)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, snap *platform.Snapshot) {
	out := cmd.OutOrStdout()

	state := "enabled"
	if !snap.RuntimeEnabled {
		state = "disabled"
	}
	fmt.Fprintf(out, "Platform %s, generation %s\n", state, snap.GenerationID)
	fmt.Fprintf(out, "Plugins: %d active, %d disabled, %d errored, %d ignored\n",
		snap.Count(platform.StatusActive),
		snap.Count(platform.StatusDisabled),
		snap.Count(platform.StatusError),
		snap.Count(platform.StatusIgnored))

	for _, entry := range snap.Inventory {
		fmt.Fprintf(out, "  [%s] %s %s (%s)", entry.Status, entry.ID, entry.Version, entry.Source)
		if entry.Reason != "" {
			fmt.Fprintf(out, ": %s", entry.Reason)
		}
		fmt.Fprintln(out)
	}

	problems := 0
	for _, d := range snap.Diagnostics {
		if d.Level == diagnostics.LevelInfo {
			continue
		}
		problems++
		fmt.Fprintf(out, "  %s %s", d.Level, d.Code)
		if d.PluginID != "" {
			fmt.Fprintf(out, " [%s]", d.PluginID)
		}
		fmt.Fprintf(out, ": %s\n", d.Message)
	}
	if problems == 0 {
		fmt.Fprintln(out, "No problems reported")
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
