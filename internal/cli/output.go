package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/dataset"
)

const previewRows = 10

type askFunc func(ctx context.Context, prompt string) (model.Envelope, error)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, ask askFunc) error {
	sc := newScanner(in)
	var followUps []string
	for {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() || done(ctx) {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := sc.Text()
		if isExit(line) {
			return nil
		}
		prompt := resolveInput(line, followUps)
		if prompt == "" {
			continue
		}
		env, err := ask(ctx, prompt)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		renderEnvelope(out, env)
		followUps = env.FollowUpQuestions
	}
}

// renderEnvelope prints an envelope for a terminal. Charts are listed by
// title; use the ask command for the full figure JSON.
func renderEnvelope(w io.Writer, env model.Envelope) {
	if env.ResponseText != "" {
		fmt.Fprintln(w, env.ResponseText)
	}
	if env.PlotlyFig != nil {
		fmt.Fprintf(w, "[chart] %s\n", titleOr(env.PlotlyFig.Title()))
	}
	for i, f := range env.PlotlyDashboard {
		fmt.Fprintf(w, "[chart %d] %s\n", i+1, titleOr(f.Title()))
	}
	if env.DataFrame != nil {
		writeTable(w, env.DataFrame, previewRows)
	}
	if len(env.FollowUpQuestions) > 0 {
		fmt.Fprintln(w, "\nSuggested follow-ups:")
		for i, q := range env.FollowUpQuestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, q)
		}
	}
}

func writeTable(w io.Writer, f *dataset.Frame, limit int) {
	head := f.Head(limit)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(head.ColumnNames(), "\t"))
	for _, r := range head.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
	if rows, _ := f.Shape(); rows > limit {
		fmt.Fprintf(w, "... %d more rows\n", rows-limit)
	}
}

func titleOr(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
