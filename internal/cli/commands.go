package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datasense-ai/server/internal/dataset"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Answer one request and print the response envelope as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		env, err := s.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), env)
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Generate a multi-chart dashboard and print it as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		env, err := s.Dashboard(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), env)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the data summary and the data quality report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := loadDataset()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, dataset.Summarize(frame, cfg.Dataset))
		fmt.Fprintln(out)
		fmt.Fprintln(out, dataset.QualityReport(frame))
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis session",
	Long: `Start a console REPL over the dataset. Type a request, or the number
of a suggested follow-up question. "exit" ends the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, cleanup, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s over %s\n\n%s\n", s.ID, s.Name, s.Report)
		return chatLoop(ctx, cmd.InOrStdin(), out, s.Ask)
	},
}

func init() {
	rootCmd.AddCommand(askCmd, dashboardCmd, reportCmd, chatCmd)
}

// resolveInput maps a bare number onto the matching follow-up question.
func resolveInput(line string, followUps []string) string {
	line = strings.TrimSpace(line)
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(followUps) {
		return followUps[n-1]
	}
	return line
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}

func done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
