package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"timelock/internal/config"
	"timelock/internal/seal"
	"timelock/internal/timeauth"
	"timelock/internal/tools"
)

// errToolFailed marks a command whose tool result was an error. The result
// has already been printed.
var errToolFailed = errors.New("tool call failed")

type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	lookupEnv    func(string) (string, bool)
	now          func() time.Time
	newAuthority func(*config.Config) (timeauth.Authority, error)

	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	engine     *seal.Engine
	toolbox    *tools.Toolbox
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{
		in:        in,
		out:       out,
		errOut:    errOut,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		newAuthority: func(cfg *config.Config) (timeauth.Authority, error) {
			return timeauth.NewAuthority(cfg.AuthorityOptions(&http.Client{}))
		},
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timelock",
		Short: "Timelock encryption backed by a remote key authority",
		Long: `timelock encrypts messages that can only be decrypted after a future time.

The decryption key is withheld by a key authority (Shutter Network by default,
or the drand beacon) until the unlock time. Nothing is stored locally: keep the
identity and encrypted_data printed by "timelock encrypt".`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a TOML configuration file")

	root.AddCommand(
		c.serveCmd(),
		c.encryptCmd(),
		c.statusCmd(),
		c.decryptCmd(),
		c.timeCmd(),
		c.explainCmd(),
	)
	return root
}

// setup loads configuration and wires the engine before any subcommand runs.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnv(c.configPath, c.lookupEnv)
	if err != nil {
		return c.fail(err)
	}
	c.cfg = cfg

	level, _ := cfg.SlogLevel()
	c.logger = slog.New(slog.NewJSONHandler(c.errOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)

	authority, err := c.newAuthority(cfg)
	if err != nil {
		return c.fail(err)
	}

	c.engine = seal.New(authority,
		seal.WithMinLeadTime(cfg.Engine.MinLeadTime.Duration),
		seal.WithClock(c.now),
		seal.WithLogger(c.logger),
	)

	catalog, err := tools.NewCatalog()
	if err != nil {
		return c.fail(err)
	}
	c.toolbox = tools.NewToolbox(c.engine, catalog, c.logger)
	return nil
}

// call runs a tool and prints its JSON payload to stdout.
func (c *cli) call(ctx context.Context, name string, args map[string]any) error {
	res, err := c.toolbox.Call(ctx, name, args)
	if err != nil {
		return c.fail(err)
	}

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Payload); err != nil {
		return c.fail(fmt.Errorf("cannot write result: %w", err))
	}

	if res.IsError {
		return errToolFailed
	}
	return nil
}

func (c *cli) fail(err error) error {
	fmt.Fprintf(c.errOut, "error: %v\n", err)
	return err
}
