package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timelock/internal/tools"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over HTTP",
		Long: `Serve the timelock tools on /mcp (JSON-RPC over HTTP POST), with /health
for load balancers. The port comes from the config file or the PORT variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	srv, err := tools.NewServer(c.engine, tools.Options{
		RateLimit:     c.cfg.Server.RateLimit,
		RateBurst:     c.cfg.Server.RateBurst,
		AllowedOrigin: c.cfg.Server.AllowedOrigin,
		Logger:        c.logger,
	})
	if err != nil {
		return c.fail(err)
	}

	httpServer := &http.Server{
		Addr:              c.cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("timelock server starting",
			"addr", httpServer.Addr,
			"authority", c.engine.Authority(),
			"version", tools.ServerVersion,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return c.fail(err)
	case <-ctx.Done():
	}

	c.logger.Info("timelock server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (c *cli) encryptCmd() *cobra.Command {
	var until, message string

	cmd := &cobra.Command{
		Use:   "encrypt [path] --until <time>",
		Short: "Encrypt a message until a future time",
		Long: `Encrypt a message until a future time.

The message is taken from --message, from the file at path, or from stdin.
--until accepts 'now'-relative times ('3 months from now'), dates
('2025-12-25', 'January 15, 2025') or Unix timestamps in seconds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if message == "" {
				data, err := readInput(c.in, path)
				if err != nil {
					return c.fail(err)
				}
				message = string(data)
			} else if path != "" {
				return c.fail(errors.New("cannot use both --message and a file path"))
			}

			return c.call(cmd.Context(), tools.ToolEncrypt, map[string]any{
				"message":     message,
				"unlock_time": until,
			})
		},
	}
	cmd.Flags().StringVarP(&until, "until", "u", "", "Unlock time expression")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to encrypt")
	_ = cmd.MarkFlagRequired("until")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <identity>",
		Short: "Check whether a message can be decrypted yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), tools.ToolStatus, map[string]any{"identity": args[0]})
		},
	}
}

func (c *cli) decryptCmd() *cobra.Command {
	var data, dataFile string

	cmd := &cobra.Command{
		Use:   "decrypt <identity> [--data <encrypted_data> | --data-file <path>]",
		Short: "Decrypt a message once its unlock time has passed",
		Long: `Decrypt a message once its unlock time has passed.

encrypted_data is taken from --data, from --data-file, or from stdin. Before the
unlock time the result has status "locked" and the command succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" && dataFile != "" {
				return c.fail(errors.New("cannot use both --data and --data-file"))
			}
			if data == "" {
				raw, err := readInput(c.in, dataFile)
				if err != nil {
					return c.fail(err)
				}
				data = strings.TrimSpace(string(raw))
			}

			return c.call(cmd.Context(), tools.ToolDecrypt, map[string]any{
				"identity":       args[0],
				"encrypted_data": data,
			})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "encrypted_data from timelock encrypt")
	cmd.Flags().StringVarP(&dataFile, "data-file", "f", "", "File containing encrypted_data")
	return cmd
}

func (c *cli) timeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "time [expression]",
		Short: "Convert a time expression to a Unix timestamp",
		Example: `  timelock time
  timelock time 3 months from now
  timelock time 2025-12-25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			if expr == "" {
				expr = "now"
			}
			return c.call(cmd.Context(), tools.ToolUnixTime, map[string]any{"time_expression": expr})
		},
	}
}

func (c *cli) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Explain how timelock encryption works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), tools.ToolExplain, nil)
		},
	}
}
