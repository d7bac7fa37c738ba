package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/aliascache"
)

func (c *CLI) newPrimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prime <id>...",
		Short: "Load aliases that are not cached yet from the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			noMeta, _ := cmd.Flags().GetBool("no-meta")

			missing, err := c.app.Aliases.NonCachedIDs(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if err := c.app.Aliases.Prime(cmd.Context(), ids, aliascache.WithMeta(!noMeta)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.out, "primed %d of %d alias(es)\n", len(missing), len(ids))
			return nil
		},
	}
	cmd.Flags().Bool("no-meta", false, "Do not prime alias metadata")
	return cmd
}
