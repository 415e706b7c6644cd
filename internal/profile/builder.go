package profile

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/model"
)

// defaultThemeCount is the requested cluster count when config leaves it
// unset.
const defaultThemeCount = 5

// Builder orchestrates one profile build: it sequences the adapters, applies
// the resolution policy, feeds the theme extractor and scorer, and assembles
// one immutable Profile. Builds are memoized by (query, hint) for the
// process lifetime; the serve mode may call Build concurrently.
type Builder struct {
	Adapters *Adapters
	Scorer   *Scorer
	Metrics  *MetricsProbe
	Themes   int

	mu   sync.Mutex
	memo map[string]*model.Profile
}

// NewBuilder assembles a Builder. themes <= 0 falls back to the default
// cluster count.
func NewBuilder(adapters *Adapters, scorer *Scorer, metrics *MetricsProbe, themes int) *Builder {
	return &Builder{
		Adapters: adapters,
		Scorer:   scorer,
		Metrics:  metrics,
		Themes:   themes,
	}
}

// Build produces the discovery profile for a named organization. Partial
// source failure is normal and silent — every missing block keeps its
// explicit empty shape. The returned Profile is shared by subsequent builds
// of the same (query, hint) and must not be mutated.
func (b *Builder) Build(ctx context.Context, query, hint string) (*model.Profile, error) {
	key := query + "\x00" + hint

	b.mu.Lock()
	if b.memo == nil {
		b.memo = make(map[string]*model.Profile)
	}
	if p, ok := b.memo[key]; ok {
		b.mu.Unlock()
		zap.L().Debug("profile cache hit",
			zap.String("query", query),
			zap.String("hint", hint),
		)
		return p, nil
	}
	b.mu.Unlock()

	p, err := b.assemble(ctx, query, hint)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.memo[key] = p
	b.mu.Unlock()
	return p, nil
}

func (b *Builder) assemble(ctx context.Context, query, hint string) (*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "profile: build cancelled")
	}

	dir := b.Adapters.Directory(ctx, query, hint)

	// The directory's canonical name drives the remaining lookups when
	// present.
	lookupName := query
	if rec, ok := dir.Get(); ok && rec.Name != "" {
		lookupName = rec.Name
	}

	reg := b.Adapters.Regulatory(ctx, lookupName)
	name := effectiveName(query, dir, reg)

	news := b.Adapters.News(ctx, name)

	placeholders := map[string]model.PlaceholderNote{
		"klas":     b.Adapters.KLAS(name),
		"linkedin": b.Adapters.LinkedIn(name),
	}

	// Only the directory record feeds risk/opportunity scoring; regulatory
	// and news never do.
	risks, opportunities := b.Scorer.Score(dir)

	k := b.Themes
	if k <= 0 {
		k = defaultThemeCount
	}

	var directory *model.DirectoryRecord
	var reviews *model.ReviewSnapshot
	if rec, ok := dir.Get(); ok {
		texts := make([]string, 0, len(rec.Reviews))
		for _, r := range rec.Reviews {
			texts = append(texts, r.Text)
		}
		directory = &rec
		reviews = &model.ReviewSnapshot{
			Rating:      rec.Rating,
			RatingCount: rec.RatingCount,
			Items:       rec.Reviews,
			Themes:      ExtractThemes(texts, k),
		}
	}

	var regulatory *model.RegulatoryRecord
	if rec, ok := reg.Get(); ok {
		regulatory = &rec
	}

	newsItems := []model.NewsItem{}
	if items, ok := news.Get(); ok {
		newsItems = items
	}

	var resolved *string
	if (directory != nil && directory.Name != "") || (regulatory != nil && regulatory.Name != "") {
		n := name
		resolved = &n
	}

	metrics := map[string]map[string]any{}
	if b.Metrics != nil {
		metrics = b.Metrics.Collect(ctx, reg, dir)
	}

	zap.L().Debug("profile assembled",
		zap.String("query", query),
		zap.Bool("directory", directory != nil),
		zap.Bool("regulatory", regulatory != nil),
		zap.Int("news_items", len(newsItems)),
		zap.Int("risks", len(risks)),
		zap.Int("opportunities", len(opportunities)),
	)

	return &model.Profile{
		Query:          query,
		ResolvedName:   resolved,
		Directory:      directory,
		Regulatory:     regulatory,
		Reviews:        reviews,
		News:           newsItems,
		Placeholders:   placeholders,
		Risks:          risks,
		Opportunities:  opportunities,
		DerivedMetrics: metrics,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
