package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/model"
	sfpkg "github.com/sells-group/profiler-cli/pkg/salesforce"
)

var (
	profileHint   string
	profileThemes int
	profileRules  string
	profilePretty bool
	profileOut    string
	profilePush   bool
	profileSave   bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <organization>",
	Short: "Build a discovery profile for one organization",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		builder, err := initBuilder(ctx, profileRules, profileThemes)
		if err != nil {
			return err
		}

		p, err := builder.Build(ctx, query, profileHint)
		if err != nil {
			return eris.Wrap(err, "build profile")
		}

		resolved := ""
		if p.ResolvedName != nil {
			resolved = *p.ResolvedName
		}
		zap.L().Info("profile built",
			zap.String("query", query),
			zap.String("resolved", resolved),
			zap.Int("news_items", len(p.News)),
			zap.Int("risks", len(p.Risks)),
			zap.Int("opportunities", len(p.Opportunities)),
		)

		if profileSave {
			st, err := initSnapshotStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := st.SaveProfile(ctx, p)
			if err != nil {
				return err
			}
			zap.L().Info("profile saved", zap.String("id", id))
		}

		if profilePush {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			if err := pushProfile(ctx, sf, p); err != nil {
				return eris.Wrap(err, "push profile to salesforce")
			}
		}

		return writeProfile(p, profileOut, profilePretty)
	},
}

// writeProfile renders the profile JSON to the given path, or stdout when
// path is empty.
func writeProfile(p *model.Profile, path string, pretty bool) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(p); err != nil {
		return eris.Wrap(err, "encode profile")
	}
	return nil
}

// pushProfile upserts the profile into Salesforce: the matching Account is
// updated in place, otherwise a new one is created. Accounts are matched by
// name first, then by the directory website, since CRM account names often
// drift from the legal names the directory carries.
func pushProfile(ctx context.Context, sf sfpkg.Client, p *model.Profile) error {
	name := p.Query
	if p.ResolvedName != nil && *p.ResolvedName != "" {
		name = *p.ResolvedName
	}

	fields := profileAccountFields(p)

	account, err := sfpkg.FindAccountByName(ctx, sf, name)
	if err != nil {
		return err
	}
	if account == nil && p.Directory != nil && p.Directory.Website != "" {
		account, err = sfpkg.FindAccountByWebsite(ctx, sf, p.Directory.Website)
		if err != nil {
			return err
		}
	}
	if account != nil {
		if err := sfpkg.UpdateAccount(ctx, sf, account.ID, fields); err != nil {
			return err
		}
		zap.L().Info("salesforce account updated",
			zap.String("id", account.ID),
			zap.String("name", name),
		)
		return nil
	}

	fields["Name"] = name
	id, err := sfpkg.CreateAccount(ctx, sf, fields)
	if err != nil {
		return err
	}
	zap.L().Info("salesforce account created",
		zap.String("id", id),
		zap.String("name", name),
	)
	return nil
}

// profileAccountFields maps profile data onto Account fields. Only populated
// values are written, so a sparse profile never blanks existing CRM data.
func profileAccountFields(p *model.Profile) map[string]any {
	fields := map[string]any{}

	if d := p.Directory; d != nil {
		if d.Website != "" {
			fields["Website"] = d.Website
		}
		if d.Phone != "" {
			fields["Phone"] = d.Phone
		}
	}
	if r := p.Regulatory; r != nil {
		if r.Address != "" {
			fields["BillingStreet"] = r.Address
		}
		if r.City != "" {
			fields["BillingCity"] = r.City
		}
		if r.State != "" {
			fields["BillingState"] = r.State
		}
		if r.Zip != "" {
			fields["BillingPostalCode"] = r.Zip
		}
	}

	if summary := profileSummary(p); summary != "" {
		fields["Description"] = summary
	}

	return fields
}

// profileSummary renders the plain-text digest pushed into the Account
// description: review themes, then risks, then opportunities.
func profileSummary(p *model.Profile) string {
	var lines []string
	if p.Reviews != nil && len(p.Reviews.Themes) > 0 {
		lines = append(lines, "Review themes: "+strings.Join(p.Reviews.Themes, ", "))
	}
	for _, r := range p.Risks {
		lines = append(lines, "Risk: "+r)
	}
	for _, o := range p.Opportunities {
		lines = append(lines, "Opportunity: "+o)
	}
	return strings.Join(lines, "\n")
}

func init() {
	profileCmd.Flags().StringVar(&profileHint, "hint", "", "disambiguation hint appended to the lookup (city, state)")
	profileCmd.Flags().IntVar(&profileThemes, "themes", 0, "review theme count (default from config)")
	profileCmd.Flags().StringVar(&profileRules, "rules", "", "YAML scoring rules file (default: notion registry, then built-ins)")
	profileCmd.Flags().BoolVar(&profilePretty, "pretty", false, "indent the JSON output")
	profileCmd.Flags().StringVar(&profileOut, "out", "", "write JSON to this file instead of stdout")
	profileCmd.Flags().BoolVar(&profilePush, "push", false, "push the profile to the matching Salesforce account")
	profileCmd.Flags().BoolVar(&profileSave, "save", false, "persist the profile to the snapshot store")
	rootCmd.AddCommand(profileCmd)
}
