package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/datasense-ai/server/internal/agent/model"
)

var (
	//go:embed template/router.txt
	routerPrompt string
	//go:embed template/extractor.txt
	extractorPrompt string
	//go:embed template/codegen_dashboard.txt
	dashboardPrompt string
	//go:embed template/codegen_generic.txt
	genericPrompt string
	//go:embed template/replan.txt
	replanPrompt string
	//go:embed template/followup.txt
	followUpPrompt string
)

// Vars are the values a node template may reference.
type Vars struct {
	DataSummary  string
	UserPrompt   string
	Intent       model.Intent
	Error        string
	Tool         string
	ResponseText string
}

// render formats one template through the eino prompt component so prompt
// callbacks fire for every node prompt.
func render(ctx context.Context, name, tpl string, v Vars) (string, error) {
	t := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(tpl))
	msgs, err := t.Format(ctx, map[string]any{
		"DataSummary":  v.DataSummary,
		"UserPrompt":   v.UserPrompt,
		"Intent":       string(v.Intent),
		"Error":        v.Error,
		"Tool":         v.Tool,
		"ResponseText": v.ResponseText,
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

func RenderRouter(ctx context.Context, v Vars) (string, error) {
	return render(ctx, "router", routerPrompt, v)
}

func RenderExtractor(ctx context.Context, v Vars) (string, error) {
	return render(ctx, "extractor", extractorPrompt, v)
}

// RenderCodegen picks the dashboard variant for the dashboard intent and the
// generic variant otherwise. A non-empty v.Error is embedded as corrective context.
func RenderCodegen(ctx context.Context, v Vars) (string, error) {
	if v.Intent == model.IntentDashboard {
		return render(ctx, "codegen_dashboard", dashboardPrompt, v)
	}
	return render(ctx, "codegen_generic", genericPrompt, v)
}

func RenderReplan(ctx context.Context, v Vars) (string, error) {
	return render(ctx, "replan", replanPrompt, v)
}

func RenderFollowUp(ctx context.Context, v Vars) (string, error) {
	return render(ctx, "followup", followUpPrompt, v)
}
