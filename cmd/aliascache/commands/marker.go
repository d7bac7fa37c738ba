package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newLastChangedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-changed",
		Short: "Print the namespace change marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.app.Aliases.LastChanged(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.out, t.Format(time.RFC3339Nano))
			return nil
		},
	}
}

func (c *CLI) newQueryKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query-key <query>",
		Short: "Print the cache key a query result is stored under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := c.app.Aliases.QueryKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.out, k)
			return nil
		},
	}
}
