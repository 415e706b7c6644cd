package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/model"
	"github.com/sells-group/profiler-cli/pkg/notion"
)

// LoadNotion queries the Notion rule database for all active rows and
// returns them as model.Rule values. Pattern is the title property, Label is
// rich text; rows that are drafts or retired are filtered server-side.
func LoadNotion(ctx context.Context, client notion.Client, dbID string) ([]model.Rule, error) {
	pages, err := notion.QueryActive(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load rule registry")
	}

	var rules []model.Rule
	for _, p := range pages {
		r, err := parseRulePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed rule page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		rules = append(rules, r)
	}

	return rules, nil
}

func parseRulePage(p notionapi.Page) (model.Rule, error) {
	var r model.Rule

	// Pattern (title)
	if prop, ok := p.Properties["Pattern"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			r.Pattern = plainText(tp.Title)
		}
	}

	// Label (rich_text)
	if prop, ok := p.Properties["Label"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			r.Label = plainText(rtp.RichText)
		}
	}

	if r.Pattern == "" {
		return r, eris.New("missing Pattern property")
	}
	if r.Label == "" {
		return r, eris.New("missing Label property")
	}

	return r, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
