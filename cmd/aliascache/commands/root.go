// Package commands implements the aliascache CLI.
package commands

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/unkn0wn-root/aliascache"
	"github.com/unkn0wn-root/aliascache/internal/app"
)

// ErrInvalidID is returned for an argument that is not a positive alias ID.
var ErrInvalidID = zerr.New("invalid alias id")

// Opener builds the application from a config file path. An empty path means
// built-in defaults.
type Opener func(configPath string) (*app.App, error)

// CLI represents the command line interface for aliascache.
type CLI struct {
	open    Opener
	out     io.Writer
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI that builds its App with open and prints to out.
func New(open Opener, out io.Writer) *CLI {
	c := &CLI{open: open, out: out}

	rootCmd := &cobra.Command{
		Use:           "aliascache",
		Short:         "Inspect and maintain the blog alias cache",
		Long: `Inspect and maintain the blog alias cache.

The ristretto and bigcache providers (ristretto is the default) keep the cache
inside this process, so every invocation starts empty and a clean is not seen
by any other process. Use provider.type: redis with shared_gens to operate on
a cache that outlives a single command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			a, err := c.open(path)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.close(cmd.Context())
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to aliascache.yaml (defaults are used when empty)")

	rootCmd.AddCommand(c.newPrimeCmd())
	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newLastChangedCmd())
	rootCmd.AddCommand(c.newQueryKeyCmd())

	c.rootCmd = rootCmd
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails
	if cerr := c.close(ctx); err == nil {
		err = cerr
	}
	return err
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	a := c.app
	c.app = nil
	return a.Close(ctx)
}

func parseIDs(args []string) ([]aliascache.ID, error) {
	ids := make([]aliascache.ID, 0, len(args))
	for _, s := range args {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, zerr.With(ErrInvalidID, "arg", s)
		}
		ids = append(ids, aliascache.ID(n))
	}
	return ids, nil
}
