// Package profile implements the discovery-profile engine: per-source
// adapters, entity resolution, review theme extraction, rule-based scoring,
// and the orchestrator that assembles one immutable Profile per query.
package profile

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/config"
	"github.com/sells-group/profiler-cli/internal/model"
	"github.com/sells-group/profiler-cli/pkg/bingnews"
	"github.com/sells-group/profiler-cli/pkg/carecompare"
	"github.com/sells-group/profiler-cli/pkg/places"
)

const (
	// regulatoryPageSize caps the candidate list pulled per dataset search.
	regulatoryPageSize = 50
	// newsCount caps the articles pulled per news search.
	newsCount = 10
)

// Adapters issues one lookup per external source and normalizes each raw
// schema into its model shape. Every adapter is memoized by its input
// arguments, and every transport or payload failure degrades to Unavailable;
// no error crosses the adapter boundary.
//
// A missing credential is a supported degraded mode: the adapter returns
// Unavailable without touching its client at all.
type Adapters struct {
	Places     places.Client
	PlacesKey  string
	CMS        carecompare.Client
	NewsClient bingnews.Client
	NewsKey    string

	mu       sync.Mutex
	dirMemo  map[string]model.Outcome[model.DirectoryRecord]
	regMemo  map[string]model.Outcome[model.RegulatoryRecord]
	newsMemo map[string]model.Outcome[[]model.NewsItem]
}

// NewAdapters wires the source clients from config, sharing one HTTP client
// (normally routed through a MemoTransport). Clients whose credential is
// absent are left nil.
func NewAdapters(cfg *config.Config, httpc *http.Client) *Adapters {
	a := &Adapters{
		PlacesKey: cfg.Places.Key,
		NewsKey:   cfg.News.Key,
		CMS: carecompare.NewClient(
			carecompare.WithBaseURL(cfg.CMS.BaseURL),
			carecompare.WithDatasetIDs(cfg.CMS.DatasetID, cfg.CMS.HCAHPSID),
			carecompare.WithHTTPClient(httpc),
		),
	}
	if cfg.Places.Key != "" {
		a.Places = places.NewClient(cfg.Places.Key,
			places.WithBaseURL(cfg.Places.BaseURL),
			places.WithHTTPClient(httpc),
		)
	}
	if cfg.News.Key != "" {
		a.NewsClient = bingnews.NewClient(cfg.News.Key,
			bingnews.WithBaseURL(cfg.News.BaseURL),
			bingnews.WithMarket(cfg.News.Market),
			bingnews.WithHTTPClient(httpc),
		)
	}
	return a
}

// Directory looks the organization up in the place/business directory:
// text search with the name (plus ", hint" when present), first result only,
// then a details call for the fixed field set including one page of reviews.
func (a *Adapters) Directory(ctx context.Context, name, hint string) model.Outcome[model.DirectoryRecord] {
	key := name + "|" + hint

	a.mu.Lock()
	if a.dirMemo == nil {
		a.dirMemo = make(map[string]model.Outcome[model.DirectoryRecord])
	}
	if out, ok := a.dirMemo[key]; ok {
		a.mu.Unlock()
		return out
	}
	a.mu.Unlock()

	out := a.lookupDirectory(ctx, name, hint)

	a.mu.Lock()
	a.dirMemo[key] = out
	a.mu.Unlock()
	return out
}

func (a *Adapters) lookupDirectory(ctx context.Context, name, hint string) model.Outcome[model.DirectoryRecord] {
	if a.PlacesKey == "" || a.Places == nil {
		zap.L().Debug("directory source not configured, skipping",
			zap.String("name", name),
		)
		return model.Unavailable[model.DirectoryRecord]()
	}

	query := name
	if hint != "" {
		query = name + ", " + hint
	}

	search, err := a.Places.TextSearch(ctx, query)
	if err != nil {
		zap.L().Debug("directory text search failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return model.Unavailable[model.DirectoryRecord]()
	}
	if len(search.Places) == 0 {
		zap.L().Debug("directory text search returned no places",
			zap.String("query", query),
		)
		return model.Unavailable[model.DirectoryRecord]()
	}

	// First result only; no secondary disambiguation.
	place, err := a.Places.Details(ctx, search.Places[0].ID)
	if err != nil {
		zap.L().Debug("directory details failed",
			zap.String("place_id", search.Places[0].ID),
			zap.Error(err),
		)
		return model.Unavailable[model.DirectoryRecord]()
	}

	reviews := make([]model.ReviewItem, 0, len(place.Reviews))
	for _, r := range place.Reviews {
		reviews = append(reviews, model.NewReviewItem(
			r.AuthorAttribution.DisplayName,
			r.Rating,
			r.RelativePublishTimeDescription,
			r.Text.Text,
		))
	}

	return model.Found(model.DirectoryRecord{
		Name:        place.DisplayName.Text,
		Address:     place.FormattedAddress,
		Phone:       place.NationalPhoneNumber,
		Website:     place.WebsiteURI,
		MapsURL:     place.GoogleMapsURI,
		Rating:      place.Rating,
		RatingCount: place.UserRatingCount,
		Reviews:     reviews,
	})
}

// Regulatory searches the quality dataset for the name and returns the
// candidate whose name shares the most query tokens, ties broken by original
// list order. The winning row passes through unmodified.
func (a *Adapters) Regulatory(ctx context.Context, name string) model.Outcome[model.RegulatoryRecord] {
	a.mu.Lock()
	if a.regMemo == nil {
		a.regMemo = make(map[string]model.Outcome[model.RegulatoryRecord])
	}
	if out, ok := a.regMemo[name]; ok {
		a.mu.Unlock()
		return out
	}
	a.mu.Unlock()

	out := a.lookupRegulatory(ctx, name)

	a.mu.Lock()
	a.regMemo[name] = out
	a.mu.Unlock()
	return out
}

func (a *Adapters) lookupRegulatory(ctx context.Context, name string) model.Outcome[model.RegulatoryRecord] {
	if a.CMS == nil {
		return model.Unavailable[model.RegulatoryRecord]()
	}

	hospitals, err := a.CMS.SearchHospitals(ctx, name, regulatoryPageSize)
	if err != nil {
		zap.L().Debug("regulatory search failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return model.Unavailable[model.RegulatoryRecord]()
	}
	if len(hospitals) == 0 {
		return model.Unavailable[model.RegulatoryRecord]()
	}

	best := hospitals[0]
	bestScore := tokenOverlap(name, best.HospitalName)
	for _, h := range hospitals[1:] {
		if s := tokenOverlap(name, h.HospitalName); s > bestScore {
			best, bestScore = h, s
		}
	}

	return model.Found(model.RegulatoryRecord{
		ProviderID:        best.ProviderID,
		Name:              best.HospitalName,
		Type:              best.HospitalType,
		Ownership:         best.HospitalOwnership,
		Address:           best.Address,
		City:              best.City,
		State:             best.State,
		Zip:               best.ZipCode,
		Phone:             best.PhoneNumber,
		OverallRating:     best.HospitalOverallRating,
		EmergencyServices: best.EmergencyServices,
	})
}

// News pulls the most recent press coverage for the name, capped at ten
// items, newest first.
func (a *Adapters) News(ctx context.Context, name string) model.Outcome[[]model.NewsItem] {
	a.mu.Lock()
	if a.newsMemo == nil {
		a.newsMemo = make(map[string]model.Outcome[[]model.NewsItem])
	}
	if out, ok := a.newsMemo[name]; ok {
		a.mu.Unlock()
		return out
	}
	a.mu.Unlock()

	out := a.lookupNews(ctx, name)

	a.mu.Lock()
	a.newsMemo[name] = out
	a.mu.Unlock()
	return out
}

func (a *Adapters) lookupNews(ctx context.Context, name string) model.Outcome[[]model.NewsItem] {
	if a.NewsKey == "" || a.NewsClient == nil {
		zap.L().Debug("news source not configured, skipping",
			zap.String("name", name),
		)
		return model.Unavailable[[]model.NewsItem]()
	}

	query := fmt.Sprintf("%s hospital OR health system press release", name)
	resp, err := a.NewsClient.Search(ctx, query, newsCount)
	if err != nil {
		zap.L().Debug("news search failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return model.Unavailable[[]model.NewsItem]()
	}
	// A payload without the value key is indistinguishable from a broken
	// response; treat it as unavailable rather than an empty feed.
	if resp.Value == nil {
		return model.Unavailable[[]model.NewsItem]()
	}

	items := make([]model.NewsItem, 0, len(resp.Value))
	for _, art := range resp.Value {
		items = append(items, model.NewsItem{
			Title:       art.Name,
			URL:         art.URL,
			Description: art.Description,
			Source:      articleSource(art),
			PublishedAt: parseNewsTime(art.DatePublished),
		})
	}
	return model.Found(items)
}

func articleSource(art bingnews.Article) string {
	if len(art.Provider) == 0 {
		return ""
	}
	return art.Provider[0].Name
}

// parseNewsTime parses the feed's RFC3339 timestamps, tolerating the
// trailing fractional seconds the API emits. Unparseable values become the
// zero time rather than failing the whole adapter.
func parseNewsTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// KLAS is a manual-entry stub: KLAS performance data sits behind a paid
// research subscription, so the profile carries a fixed note instead of a
// fetched block.
func (a *Adapters) KLAS(name string) model.PlaceholderNote {
	return model.PlaceholderNote{
		Source: "KLAS Research",
		Note:   fmt.Sprintf("KLAS performance and sentiment data for %s requires a KLAS subscription; enter findings manually.", name),
		Access: "manual",
	}
}

// LinkedIn is a manual-entry stub: company-page basics require manual review
// or a licensed data partner.
func (a *Adapters) LinkedIn(name string) model.PlaceholderNote {
	return model.PlaceholderNote{
		Source: "LinkedIn",
		Note:   fmt.Sprintf("LinkedIn company page for %s (headcount, postings, leadership) requires manual review or a licensed partner.", name),
		Access: "manual",
	}
}
