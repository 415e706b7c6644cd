package profile

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profiler-cli/internal/config"
	"github.com/sells-group/profiler-cli/pkg/bingnews"
	"github.com/sells-group/profiler-cli/pkg/carecompare"
	"github.com/sells-group/profiler-cli/pkg/places"
	placemocks "github.com/sells-group/profiler-cli/pkg/places/mocks"
)

func TestNewAdapters_CredentialGating(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	httpc := &http.Client{}
	a := NewAdapters(cfg, httpc)

	// The regulatory dataset is public; its client always exists.
	assert.NotNil(t, a.CMS)
	assert.Nil(t, a.Places)
	assert.Nil(t, a.NewsClient)

	cfg.Places.Key = "places-key"
	cfg.News.Key = "news-key"
	a = NewAdapters(cfg, httpc)
	assert.NotNil(t, a.Places)
	assert.NotNil(t, a.NewsClient)
	assert.Equal(t, "places-key", a.PlacesKey)
	assert.Equal(t, "news-key", a.NewsKey)
}

func TestDirectory_MissingCredentialSkipsClient(t *testing.T) {
	t.Parallel()

	stub := &stubPlaces{searchResp: &places.TextSearchResponse{
		Places: []places.Place{{ID: "place-mercy"}},
	}}
	a := &Adapters{Places: stub, PlacesKey: ""}

	out := a.Directory(context.Background(), "Mercy General Hospital", "")

	assert.False(t, out.Available())
	assert.Zero(t, stub.searchCalls)
	assert.Zero(t, stub.detailCalls)
}

func TestDirectory_FirstResultOnly(t *testing.T) {
	t.Parallel()

	stub := &stubPlaces{
		searchResp: &places.TextSearchResponse{Places: []places.Place{
			{ID: "place-mercy", DisplayName: places.DisplayName{Text: "Mercy General Hospital"}},
			{ID: "place-other", DisplayName: places.DisplayName{Text: "Mercy San Juan Medical Center"}},
		}},
		detailResp: mercyPlace(),
	}
	a := &Adapters{Places: stub, PlacesKey: "test-key"}

	out := a.Directory(context.Background(), "Mercy General", "Sacramento, CA")

	require.True(t, out.Available())
	assert.Equal(t, []string{"Mercy General, Sacramento, CA"}, stub.searchQueries)
	assert.Equal(t, []string{"place-mercy"}, stub.detailIDs)
}

func TestDirectory_QueryWithoutHint(t *testing.T) {
	t.Parallel()

	stub := &stubPlaces{
		searchResp: &places.TextSearchResponse{Places: []places.Place{{ID: "place-mercy"}}},
		detailResp: mercyPlace(),
	}
	a := &Adapters{Places: stub, PlacesKey: "test-key"}

	a.Directory(context.Background(), "Mercy General Hospital", "")

	assert.Equal(t, []string{"Mercy General Hospital"}, stub.searchQueries)
}

func TestDirectory_MapsRecord(t *testing.T) {
	t.Parallel()

	place := mercyPlace()
	place.Reviews = append(place.Reviews, places.Review{
		Rating:            ratingPtr(1),
		Text:              places.ReviewText{Text: strings.Repeat("x", 300)},
		AuthorAttribution: places.AuthorAttribution{DisplayName: "D. Reviewer"},
	})
	stub := &stubPlaces{
		searchResp: &places.TextSearchResponse{Places: []places.Place{{ID: "place-mercy"}}},
		detailResp: place,
	}
	a := &Adapters{Places: stub, PlacesKey: "test-key"}

	out := a.Directory(context.Background(), "Mercy General Hospital", "")

	rec, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "Mercy General Hospital", rec.Name)
	assert.Equal(t, "4001 J St, Sacramento, CA 95819", rec.Address)
	assert.Equal(t, "(916) 453-4545", rec.Phone)
	assert.Equal(t, "https://www.dignityhealth.org/mercy-general", rec.Website)
	assert.Equal(t, "https://maps.google.com/?cid=123", rec.MapsURL)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 3.9, *rec.Rating, 0.001)
	assert.Equal(t, 412, rec.RatingCount)

	require.Len(t, rec.Reviews, 4)
	assert.Equal(t, "A. Reviewer", rec.Reviews[0].Author)
	assert.Equal(t, "2 weeks ago", rec.Reviews[0].When)
	// Over-long review bodies are truncated with an explicit marker.
	last := rec.Reviews[3].Text
	assert.Equal(t, 281, len([]rune(last)))
	assert.True(t, strings.HasSuffix(last, "…"))
}

func TestDirectory_FailuresDegradeToUnavailable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		stub *stubPlaces
	}{
		{"search error", &stubPlaces{searchErr: eris.New("places: unexpected status 500")}},
		{"no results", &stubPlaces{searchResp: &places.TextSearchResponse{}}},
		{"details error", &stubPlaces{
			searchResp: &places.TextSearchResponse{Places: []places.Place{{ID: "place-mercy"}}},
			detailErr:  eris.New("places: unexpected status 404"),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &Adapters{Places: tc.stub, PlacesKey: "test-key"}
			out := a.Directory(context.Background(), "Mercy General Hospital", "")
			assert.False(t, out.Available())
		})
	}
}

func TestDirectory_MemoizedByNameAndHint(t *testing.T) {
	t.Parallel()

	stub := &stubPlaces{
		searchResp: &places.TextSearchResponse{Places: []places.Place{{ID: "place-mercy"}}},
		detailResp: mercyPlace(),
	}
	a := &Adapters{Places: stub, PlacesKey: "test-key"}
	ctx := context.Background()

	first := a.Directory(ctx, "Mercy General Hospital", "")
	second := a.Directory(ctx, "Mercy General Hospital", "")

	assert.Equal(t, 1, stub.searchCalls)
	assert.Equal(t, 1, stub.detailCalls)
	assert.Equal(t, first, second)

	// A different hint is a different cache key.
	a.Directory(ctx, "Mercy General Hospital", "Sacramento, CA")
	assert.Equal(t, 2, stub.searchCalls)
}

func TestDirectory_UnavailableIsMemoizedToo(t *testing.T) {
	t.Parallel()

	stub := &stubPlaces{searchErr: eris.New("places: send request")}
	a := &Adapters{Places: stub, PlacesKey: "test-key"}
	ctx := context.Background()

	assert.False(t, a.Directory(ctx, "Mercy General Hospital", "").Available())
	assert.False(t, a.Directory(ctx, "Mercy General Hospital", "").Available())
	assert.Equal(t, 1, stub.searchCalls)
}

func TestDirectory_WithGeneratedMock(t *testing.T) {
	t.Parallel()

	mc := placemocks.NewMockClient(t)
	mc.On("TextSearch", mock.Anything, "Mercy General Hospital").
		Return(&places.TextSearchResponse{Places: []places.Place{{ID: "place-mercy"}}}, nil).
		Once()
	mc.On("Details", mock.Anything, "place-mercy").
		Return(mercyPlace(), nil).
		Once()

	a := &Adapters{Places: mc, PlacesKey: "test-key"}
	out := a.Directory(context.Background(), "Mercy General Hospital", "")

	rec, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "Mercy General Hospital", rec.Name)
}

func TestRegulatory_PicksBestTokenOverlap(t *testing.T) {
	t.Parallel()

	stub := &stubCMS{hospitals: mercyHospitals()}
	a := &Adapters{CMS: stub}

	out := a.Regulatory(context.Background(), "Mercy General Hospital")

	rec, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "050077", rec.ProviderID)
	assert.Equal(t, "MERCY GENERAL HOSPITAL", rec.Name)
	assert.Equal(t, []int{regulatoryPageSize}, stub.searchLimits)
}

func TestRegulatory_OverlapBeatsListOrder(t *testing.T) {
	t.Parallel()

	stub := &stubCMS{hospitals: []carecompare.Hospital{
		{ProviderID: "050001", HospitalName: "UCSF MEDICAL CENTER"},
		{ProviderID: "050002", HospitalName: "GENERAL HOSPITAL"},
	}}
	a := &Adapters{CMS: stub}

	out := a.Regulatory(context.Background(), "UCSF Medical Center")

	rec, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "UCSF MEDICAL CENTER", rec.Name)
}

func TestRegulatory_TieKeepsFirstRow(t *testing.T) {
	t.Parallel()

	stub := &stubCMS{hospitals: []carecompare.Hospital{
		{ProviderID: "050010", HospitalName: "MERCY WEST"},
		{ProviderID: "050011", HospitalName: "MERCY EAST"},
	}}
	a := &Adapters{CMS: stub}

	out := a.Regulatory(context.Background(), "Mercy")

	rec, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "050010", rec.ProviderID)
}

func TestRegulatory_RecordPassesThroughVerbatim(t *testing.T) {
	t.Parallel()

	stub := &stubCMS{hospitals: mercyHospitals()}
	a := &Adapters{CMS: stub}

	rec, ok := a.Regulatory(context.Background(), "Mercy General Hospital").Get()
	require.True(t, ok)
	// Dataset-native strings are never normalized.
	assert.Equal(t, "Acute Care Hospitals", rec.Type)
	assert.Equal(t, "Voluntary non-profit - Church", rec.Ownership)
	assert.Equal(t, "4001 J STREET", rec.Address)
	assert.Equal(t, "SACRAMENTO", rec.City)
	assert.Equal(t, "CA", rec.State)
	assert.Equal(t, "95819", rec.Zip)
	assert.Equal(t, "4", rec.OverallRating)
	assert.Equal(t, "Yes", rec.EmergencyServices)
}

func TestRegulatory_FailuresDegradeToUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("nil client", func(t *testing.T) {
		a := &Adapters{}
		assert.False(t, a.Regulatory(context.Background(), "Mercy").Available())
	})
	t.Run("search error", func(t *testing.T) {
		a := &Adapters{CMS: &stubCMS{searchErr: eris.New("carecompare: unexpected status 502")}}
		assert.False(t, a.Regulatory(context.Background(), "Mercy").Available())
	})
	t.Run("no candidates", func(t *testing.T) {
		a := &Adapters{CMS: &stubCMS{}}
		assert.False(t, a.Regulatory(context.Background(), "Mercy").Available())
	})
}

func TestRegulatory_Memoized(t *testing.T) {
	t.Parallel()

	stub := &stubCMS{hospitals: mercyHospitals()}
	a := &Adapters{CMS: stub}
	ctx := context.Background()

	a.Regulatory(ctx, "Mercy General Hospital")
	a.Regulatory(ctx, "Mercy General Hospital")
	assert.Equal(t, 1, stub.searchCalls)

	a.Regulatory(ctx, "Mercy San Juan Medical Center")
	assert.Equal(t, 2, stub.searchCalls)
}

func TestNews_MissingCredentialSkipsClient(t *testing.T) {
	t.Parallel()

	stub := &stubNews{resp: &bingnews.SearchResponse{Value: []bingnews.Article{{Name: "ignored"}}}}
	a := &Adapters{NewsClient: stub, NewsKey: ""}

	out := a.News(context.Background(), "Mercy General Hospital")

	assert.False(t, out.Available())
	assert.Zero(t, stub.calls)
}

func TestNews_QueryShape(t *testing.T) {
	t.Parallel()

	stub := &stubNews{resp: &bingnews.SearchResponse{Value: []bingnews.Article{}}}
	a := &Adapters{NewsClient: stub, NewsKey: "test-key"}

	a.News(context.Background(), "Mercy General Hospital")

	require.Len(t, stub.queries, 1)
	assert.Equal(t, "Mercy General Hospital hospital OR health system press release", stub.queries[0])
	assert.Equal(t, []int{newsCount}, stub.counts)
}

func TestNews_MapsArticles(t *testing.T) {
	t.Parallel()

	stub := &stubNews{resp: &bingnews.SearchResponse{Value: []bingnews.Article{
		{
			Name:          "Mercy General opens new cardiac wing",
			URL:           "https://news.example.com/cardiac-wing",
			Description:   "A 40-bed expansion.",
			DatePublished: "2026-08-10T14:30:00.0000000Z",
			Provider:      []bingnews.Provider{{Name: "Sacramento Bee"}, {Name: "Wire"}},
		},
		{
			Name:          "Health system names new CIO",
			URL:           "https://news.example.com/cio",
			DatePublished: "not a timestamp",
		},
	}}}
	a := &Adapters{NewsClient: stub, NewsKey: "test-key"}

	items, ok := a.News(context.Background(), "Mercy General Hospital").Get()
	require.True(t, ok)
	require.Len(t, items, 2)

	assert.Equal(t, "Mercy General opens new cardiac wing", items[0].Title)
	assert.Equal(t, "https://news.example.com/cardiac-wing", items[0].URL)
	assert.Equal(t, "A 40-bed expansion.", items[0].Description)
	assert.Equal(t, "Sacramento Bee", items[0].Source)
	assert.Equal(t, time.Date(2026, 8, 10, 14, 30, 0, 0, time.UTC), items[0].PublishedAt)

	// No provider and an unparseable date degrade per-field, not per-item.
	assert.Empty(t, items[1].Source)
	assert.True(t, items[1].PublishedAt.IsZero())
}

func TestNews_MissingValueKeyIsUnavailable(t *testing.T) {
	t.Parallel()

	a := &Adapters{NewsClient: &stubNews{resp: &bingnews.SearchResponse{Value: nil}}, NewsKey: "test-key"}

	assert.False(t, a.News(context.Background(), "Mercy General Hospital").Available())
}

func TestNews_EmptyValueListIsAvailable(t *testing.T) {
	t.Parallel()

	a := &Adapters{NewsClient: &stubNews{resp: &bingnews.SearchResponse{Value: []bingnews.Article{}}}, NewsKey: "test-key"}

	items, ok := a.News(context.Background(), "Mercy General Hospital").Get()
	assert.True(t, ok)
	assert.Empty(t, items)
}

func TestNews_ErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	a := &Adapters{NewsClient: &stubNews{err: eris.New("bingnews: unexpected status 429")}, NewsKey: "test-key"}

	assert.False(t, a.News(context.Background(), "Mercy General Hospital").Available())
}

func TestNews_Memoized(t *testing.T) {
	t.Parallel()

	stub := &stubNews{resp: &bingnews.SearchResponse{Value: []bingnews.Article{}}}
	a := &Adapters{NewsClient: stub, NewsKey: "test-key"}
	ctx := context.Background()

	a.News(ctx, "Mercy General Hospital")
	a.News(ctx, "Mercy General Hospital")
	assert.Equal(t, 1, stub.calls)
}

func TestManualEntryStubs(t *testing.T) {
	t.Parallel()

	a := &Adapters{}

	klas := a.KLAS("Mercy General Hospital")
	assert.Equal(t, "KLAS Research", klas.Source)
	assert.Equal(t, "manual", klas.Access)
	assert.Contains(t, klas.Note, "Mercy General Hospital")
	assert.Contains(t, klas.Note, "subscription")

	li := a.LinkedIn("Mercy General Hospital")
	assert.Equal(t, "LinkedIn", li.Source)
	assert.Equal(t, "manual", li.Access)
	assert.Contains(t, li.Note, "Mercy General Hospital")
	assert.Contains(t, li.Note, "manual review")
}

func TestParseNewsTime(t *testing.T) {
	t.Parallel()

	got := parseNewsTime("2026-01-05T08:00:00+02:00")
	assert.Equal(t, time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC), got)

	assert.True(t, parseNewsTime("").IsZero())
	assert.True(t, parseNewsTime("2026/01/05").IsZero())
}
