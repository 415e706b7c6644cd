package anthropic

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Complete sends one single-turn request and returns the concatenated text
// of the response. Convenience wrapper for callers that need a plain
// prompt-in, text-out exchange.
func Complete(ctx context.Context, client Client, model, system, user string) (string, TokenUsage, error) {
	req := MessageRequest{
		Model:     model,
		MaxTokens: 4096,
		Messages:  []Message{{Role: "user", Content: user}},
	}
	if system != "" {
		req.System = []SystemBlock{{Text: system}}
	}

	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return "", TokenUsage{}, eris.Wrap(err, "anthropic: complete")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", resp.Usage, eris.New("anthropic: empty completion")
	}

	return text, resp.Usage, nil
}
