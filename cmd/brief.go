package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profiler-cli/internal/model"
	anthropicpkg "github.com/sells-group/profiler-cli/pkg/anthropic"
)

const briefSystemPrompt = `You are a healthcare IT sales strategist preparing for a discovery call. You are given a JSON discovery profile of a healthcare organization: directory listing, regulatory quality data, review themes, recent news, and rule-derived risks and opportunities.

Write exactly three sentences summarizing who they are, how patients experience them, and the single strongest discovery angle. Then list 3-5 tailored discovery questions, one per line, each tied to a specific datum in the profile. Plain text only, no markdown.`

var briefHint string

var briefCmd = &cobra.Command{
	Use:   "brief <organization>",
	Short: "Generate a discovery-call briefing from a profile",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (PROFILER_ANTHROPIC_KEY)")
		}

		builder, err := initBuilder(ctx, "", 0)
		if err != nil {
			return err
		}

		p, err := builder.Build(ctx, query, briefHint)
		if err != nil {
			return eris.Wrap(err, "build profile")
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		briefing, err := briefProfile(ctx, client, cfg.Anthropic.Model, p)
		if err != nil {
			return err
		}

		fmt.Println(briefing)
		return nil
	},
}

// briefProfile renders the profile as JSON and asks the model for the
// briefing text.
func briefProfile(ctx context.Context, client anthropicpkg.Client, modelID string, p *model.Profile) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "brief: marshal profile")
	}

	user := fmt.Sprintf("Organization: %s\n\nProfile:\n%s", p.Query, data)

	text, usage, err := anthropicpkg.Complete(ctx, client, modelID, briefSystemPrompt, user)
	if err != nil {
		return "", err
	}

	usage.LogCost(modelID, "brief")
	return text, nil
}

func init() {
	briefCmd.Flags().StringVar(&briefHint, "hint", "", "disambiguation hint appended to the lookup (city, state)")
	rootCmd.AddCommand(briefCmd)
}
