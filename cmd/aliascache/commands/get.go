package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/aliascache"
	"github.com/unkn0wn-root/aliascache/meta"
)

type aliasOut struct {
	aliascache.Alias
	Meta meta.Meta `json:"meta,omitempty"`
}

func (c *CLI) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: "Print aliases as JSON lines, loading them through the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			found, missing, err := c.app.Aliases.GetMany(ctx, ids)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.out)
			for _, id := range ids {
				a, ok := found[id]
				if !ok {
					continue
				}
				m, _, err := c.app.Meta.Get(ctx, id)
				if err != nil {
					return err
				}
				if err := enc.Encode(aliasOut{Alias: a, Meta: m}); err != nil {
					return err
				}
			}
			for _, id := range missing {
				_, _ = fmt.Fprintf(c.out, "missing %d\n", id)
			}
			return nil
		},
	}
}
