package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/executor"
)

func (c *cli) execCmd() *cobra.Command {
	var (
		database  string
		limit     int
		file      string
		noSpinner bool
	)
	cmd := &cobra.Command{
		Use:   "exec URL [QUERY...]",
		Short: "Execute a statement batch",
		Long: `Execute one or more semicolon separated statements and print one
result per statement. Ctrl-C cancels the running statement on the server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read query file: %w", err)
				}
				query = string(data)
			}

			ctx := cmd.Context()
			sid, _, err := c.connect(ctx, args[0], database)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("limit") {
				c.eng.SetRowLimit(sid, limit)
			}

			run, err := c.eng.Execute(ctx, sid, query)
			if err != nil {
				return err
			}
			c.await(ctx, run, !noSpinner)

			snap, _ := c.eng.Session(sid)
			if snap.Err != nil {
				return describeError(run.Query, snap.Err)
			}
			out := cmd.OutOrStdout()
			for _, r := range snap.Results {
				renderResult(out, r)
			}
			fmt.Fprintf(out, "\n(%s)\n", executor.FormatElapsed(snap.Elapsed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database to run against (default from the URL)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Append LIMIT n to a single SELECT without one (0 disables)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	cmd.Flags().BoolVar(&noSpinner, "no-spinner", false, "Do not show the progress spinner")
	return cmd
}

// await blocks until run finishes. An interrupt cancels it through its
// token; a second interrupt is left to the default handler.
func (c *cli) await(ctx context.Context, run *executor.Run, spin bool) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spinner *pterm.SpinnerPrinter
	if spin {
		spinner, _ = pterm.DefaultSpinner.
			WithWriter(os.Stderr).
			WithRemoveWhenDone(true).
			Start("Executing")
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	started := time.Now()

	for {
		select {
		case <-run.Done():
			if spinner != nil {
				_ = spinner.Stop()
			}
			return
		case <-sigCtx.Done():
			stop()
			c.eng.CancelToken(run.Token())
			if spinner != nil {
				spinner.UpdateText("Cancelling")
			}
			sigCtx = context.Background()
		case <-ticker.C:
			if spinner != nil && !run.Token().Cancelled() {
				spinner.UpdateText("Executing " + executor.FormatElapsed(time.Since(started)))
			}
		}
	}
}

// describeError adds a pointer under the failing character when the
// backend reported a position.
func describeError(query string, err error) error {
	var qe *adapter.QueryError
	if !errors.As(err, &qe) || qe.Position <= 0 {
		return err
	}
	if line := caret(query, qe.Position); line != "" {
		return fmt.Errorf("%w\n%s", err, line)
	}
	return err
}

// caret returns the query line holding the 1-based character position
// pos and a ^ under it.
func caret(query string, pos int) string {
	runes := []rune(query)
	if pos < 1 || pos > len(runes) {
		return ""
	}
	start := pos - 1
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	end := pos - 1
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	line := strings.TrimRight(string(runes[start:end]), "\r")
	return line + "\n" + strings.Repeat(" ", pos-1-start) + "^"
}
