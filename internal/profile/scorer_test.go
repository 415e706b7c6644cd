package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profiler-cli/internal/model"
)

func foundRecord(rating float64, count int, reviewTexts ...string) model.Outcome[model.DirectoryRecord] {
	reviews := make([]model.ReviewItem, 0, len(reviewTexts))
	for _, text := range reviewTexts {
		reviews = append(reviews, model.ReviewItem{Text: text})
	}
	return model.Found(model.DirectoryRecord{
		Name:        "Mercy General Hospital",
		Rating:      ratingPtr(rating),
		RatingCount: count,
		Reviews:     reviews,
	})
}

func TestScore_UnavailableRecord(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{{Pattern: "wait|delay", Label: "long waits"}})

	risks, opps := s.Score(model.Unavailable[model.DirectoryRecord]())

	assert.NotNil(t, risks)
	assert.NotNil(t, opps)
	assert.Empty(t, risks)
	assert.Empty(t, opps)
}

func TestScore_RatingThresholds(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	cases := []struct {
		rating float64
		want   []string
	}{
		{3.59, []string{oppUplift}},
		{3.6, []string{}},
		{4.39, []string{}},
		{4.4, []string{oppStrongPX}},
		{1.0, []string{oppUplift}},
		{5.0, []string{oppStrongPX}},
	}
	for _, tc := range cases {
		_, opps := s.Score(foundRecord(tc.rating, 0))
		assert.Equal(t, tc.want, opps, "rating %v", tc.rating)
	}
}

func TestScore_NilRatingFlagsNothing(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)
	rec := model.Found(model.DirectoryRecord{Name: "Mercy General Hospital"})

	risks, opps := s.Score(rec)

	assert.Empty(t, risks)
	assert.Empty(t, opps)
}

func TestScore_LargeSampleThreshold(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	_, opps := s.Score(foundRecord(4.0, 300))
	assert.Empty(t, opps)

	_, opps = s.Score(foundRecord(4.0, 301))
	assert.Equal(t, []string{oppLargeSample}, opps)
}

func TestScore_CombinedOpportunitiesSorted(t *testing.T) {
	t.Parallel()

	s := NewScorer(nil)

	_, opps := s.Score(foundRecord(4.7, 500))

	assert.Equal(t, []string{oppLargeSample, oppStrongPX}, opps)
}

func TestScore_PatternMatchesCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{{Pattern: "wait|delay", Label: "long waits"}})

	risks, _ := s.Score(foundRecord(4.0, 10,
		"The WAIT in the emergency room was endless.",
	))

	assert.Equal(t, []string{"long waits"}, risks)
}

func TestScore_MatchesAcrossReviewCorpus(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{
		{Pattern: "billing|insurance", Label: "billing friction"},
		{Pattern: "parking", Label: "parking complaints"},
	})

	risks, _ := s.Score(foundRecord(4.0, 10,
		"Great doctors.",
		"Insurance paperwork took three calls to sort out.",
		"Could not find parking anywhere.",
	))

	assert.Equal(t, []string{"billing friction", "parking complaints"}, risks)
}

func TestScore_DeduplicatesRepeatedMatches(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{{Pattern: "wait", Label: "long waits"}})

	risks, _ := s.Score(foundRecord(4.0, 10,
		"Waited two hours.",
		"The wait was awful.",
		"Such a long wait.",
	))

	assert.Equal(t, []string{"long waits"}, risks)
}

func TestScore_OutputSortedRegardlessOfRuleOrder(t *testing.T) {
	t.Parallel()

	corpus := []string{"Rude staff, broken parking gate, endless wait."}

	forward := NewScorer([]model.Rule{
		{Pattern: "wait", Label: "long waits"},
		{Pattern: "parking", Label: "access issues"},
		{Pattern: "rude", Label: "staff attitude"},
	})
	reversed := NewScorer([]model.Rule{
		{Pattern: "rude", Label: "staff attitude"},
		{Pattern: "parking", Label: "access issues"},
		{Pattern: "wait", Label: "long waits"},
	})

	r1, _ := forward.Score(foundRecord(4.0, 0, corpus...))
	r2, _ := reversed.Score(foundRecord(4.0, 0, corpus...))

	assert.Equal(t, []string{"access issues", "long waits", "staff attitude"}, r1)
	assert.Equal(t, r1, r2)
}

func TestScore_Idempotent(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{{Pattern: "wait", Label: "long waits"}})
	rec := foundRecord(3.2, 450, "The wait was awful.")

	r1, o1 := s.Score(rec)
	r2, o2 := s.Score(rec)

	assert.Equal(t, r1, r2)
	assert.Equal(t, o1, o2)
	require.Equal(t, []string{"long waits"}, r1)
	require.Equal(t, []string{oppLargeSample, oppUplift}, o1)
}

func TestNewScorer_SkipsInvalidPattern(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{
		{Pattern: "(unclosed", Label: "never fires"},
		{Pattern: "wait", Label: "long waits"},
	})

	risks, _ := s.Score(foundRecord(4.0, 0, "the wait (unclosed"))

	assert.Equal(t, []string{"long waits"}, risks)
}

func TestScore_NoReviewsStillScoresRating(t *testing.T) {
	t.Parallel()

	s := NewScorer([]model.Rule{{Pattern: "wait", Label: "long waits"}})

	risks, opps := s.Score(foundRecord(4.6, 0))

	assert.Empty(t, risks)
	assert.Equal(t, []string{oppStrongPX}, opps)
}
