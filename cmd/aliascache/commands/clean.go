package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/aliascache"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean <id>...",
		Short: "Drop aliases and their metadata from the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			suspended, _ := cmd.Flags().GetBool("suspended")
			ctx := aliascache.WithInvalidationSuspended(cmd.Context(), suspended)

			// unknown IDs resolve to nothing and emit no event
			var cleaned int
			c.app.Aliases.Subscribe(aliascache.ListenerFunc(func(context.Context, aliascache.ID, aliascache.Alias) {
				cleaned++
			}))

			for _, id := range ids {
				if err := c.app.Aliases.Clean(ctx, id); err != nil {
					return err
				}
			}
			if suspended {
				_, _ = fmt.Fprintln(c.out, "invalidation suspended, nothing cleaned")
				return nil
			}
			_, _ = fmt.Fprintf(c.out, "cleaned %d of %d alias(es)\n", cleaned, len(ids))
			return nil
		},
	}
	cmd.Flags().Bool("suspended", false, "Run with invalidation suspended, as bulk imports do")
	return cmd
}
