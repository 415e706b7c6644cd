package profile

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// vocabularyLimit caps the term space at the highest-document-frequency
	// terms.
	vocabularyLimit = 2000
	// labelTermCount is how many terms make up one cluster label.
	labelTermCount = 6
	kmeansRestarts = 5
	kmeansSeed     = 42
	kmeansMaxIter  = 50
	// fallbackCount and fallbackMinLen shape the frequency heuristic used
	// when clustering is infeasible.
	fallbackCount  = 10
	fallbackMinLen = 4
)

var stopWords = func() map[string]struct{} {
	words := []string{
		"a", "about", "after", "again", "all", "also", "am", "an", "and",
		"any", "are", "as", "at", "be", "because", "been", "before", "being",
		"but", "by", "can", "could", "did", "do", "does", "doing", "down",
		"during", "each", "few", "for", "from", "further", "had", "has",
		"have", "having", "he", "her", "here", "hers", "him", "his", "how",
		"i", "if", "in", "into", "is", "it", "its", "just", "me", "more",
		"most", "my", "no", "nor", "not", "now", "of", "off", "on", "once",
		"only", "or", "other", "our", "out", "over", "own", "same", "she",
		"should", "so", "some", "such", "than", "that", "the", "their",
		"them", "then", "there", "these", "they", "this", "those", "through",
		"to", "too", "under", "until", "up", "very", "was", "we", "were",
		"what", "when", "where", "which", "while", "who", "whom", "why",
		"will", "with", "would", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// ExtractThemes reduces free-text reviews to comma-joined theme labels, one
// per cluster, via TF-IDF weighting and k-means. The effective cluster count
// is min(k, surviving texts), floor 1, so there are never more labels than
// data points. Deterministic for identical input: the clustering seed is
// fixed. Empty and whitespace-only texts are dropped first; if none survive,
// the result is empty. Input degenerate enough to defeat clustering falls
// back to a visibly coarser frequency heuristic (flat single-token labels).
func ExtractThemes(texts []string, k int) []string {
	docs := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			docs = append(docs, t)
		}
	}
	if len(docs) == 0 {
		return []string{}
	}

	labels, err := clusterThemes(docs, k)
	if err != nil {
		zap.L().Debug("theme clustering fell back to frequency heuristic",
			zap.Int("texts", len(docs)),
			zap.Error(err),
		)
		return frequencyFallback(docs)
	}
	return labels
}

func clusterThemes(docs []string, k int) ([]string, error) {
	// Tokenize with stop-word filtering; collect document frequencies.
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		var toks []string
		for _, t := range alphaTokens(doc) {
			if _, stop := stopWords[t]; !stop {
				toks = append(toks, t)
			}
		}
		tokenized[i] = toks

		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	if len(df) == 0 {
		return nil, eris.New("profile: empty vocabulary after stop-wording")
	}

	vocab := capVocabulary(df, vocabularyLimit)
	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}

	// TF-IDF vectors, cosine-normalized.
	n := len(docs)
	vectors := make([][]float64, n)
	for i, toks := range tokenized {
		vec := make([]float64, len(vocab))
		total := 0
		for _, t := range toks {
			if j, ok := index[t]; ok {
				vec[j]++
				total++
			}
		}
		if total > 0 {
			for j := range vec {
				if vec[j] == 0 {
					continue
				}
				tf := vec[j] / float64(total)
				idf := math.Log(float64(n)/float64(df[vocab[j]])) + 1
				vec[j] = tf * idf
			}
			cosineNormalize(vec)
		}
		for _, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, eris.New("profile: degenerate term weights")
			}
		}
		vectors[i] = vec
	}

	c := min(k, n)
	if c < 1 {
		c = 1
	}

	assign := bestClustering(vectors, c)

	// Label each cluster with its top terms by summed weight, highest first.
	labels := make([]string, 0, c)
	for cluster := range c {
		sums := make([]float64, len(vocab))
		members := 0
		for i, cl := range assign {
			if cl != cluster {
				continue
			}
			members++
			for j, w := range vectors[i] {
				sums[j] += w
			}
		}
		terms := topTerms(vocab, sums, labelTermCount)
		if members == 0 || len(terms) == 0 {
			return nil, eris.New("profile: cluster collapsed to no weighted terms")
		}
		labels = append(labels, strings.Join(terms, ", "))
	}
	return labels, nil
}

// bestClustering runs Lloyd k-means with a fixed number of restarts and
// returns the assignment with the lowest within-cluster sum of squares.
func bestClustering(vectors [][]float64, c int) []int {
	rng := rand.New(rand.NewSource(kmeansSeed))
	var best []int
	bestCost := math.Inf(1)
	for range kmeansRestarts {
		assign, cost := lloyd(vectors, c, rng)
		if cost < bestCost {
			best, bestCost = assign, cost
		}
	}
	return best
}

func lloyd(vectors [][]float64, c int, rng *rand.Rand) ([]int, float64) {
	n := len(vectors)
	dim := len(vectors[0])

	centroids := make([][]float64, c)
	for i, p := range rng.Perm(n)[:c] {
		centroids[i] = slices.Clone(vectors[p])
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for range kmeansMaxIter {
		changed := false
		for i, vec := range vectors {
			nearest, nearestDist := 0, math.Inf(1)
			for j, cent := range centroids {
				if d := sqDist(vec, cent); d < nearestDist {
					nearest, nearestDist = j, d
				}
			}
			if assign[i] != nearest {
				assign[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, c)
		next := make([][]float64, c)
		for j := range next {
			next[j] = make([]float64, dim)
		}
		for i, vec := range vectors {
			counts[assign[i]]++
			for j, v := range vec {
				next[assign[i]][j] += v
			}
		}
		for j := range next {
			if counts[j] == 0 {
				// Reseed an empty cluster on the point farthest from its
				// current centroid.
				far, farDist := -1, -1.0
				for i, vec := range vectors {
					if d := sqDist(vec, centroids[assign[i]]); d > farDist {
						far, farDist = i, d
					}
				}
				if far >= 0 {
					copy(next[j], vectors[far])
				}
				continue
			}
			for d := range next[j] {
				next[j][d] /= float64(counts[j])
			}
		}
		centroids = next
	}

	cost := 0.0
	for i, vec := range vectors {
		cost += sqDist(vec, centroids[assign[i]])
	}
	return assign, cost
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cosineNormalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}

// capVocabulary orders terms by document frequency (ties alphabetical) and
// keeps the top limit.
func capVocabulary(df map[string]int, limit int) []string {
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// topTerms returns up to limit terms with positive summed weight, highest
// weight first, ties alphabetical.
func topTerms(vocab []string, sums []float64, limit int) []string {
	type weighted struct {
		term   string
		weight float64
	}
	ranked := make([]weighted, 0, len(vocab))
	for j, w := range sums {
		if w > 0 {
			ranked = append(ranked, weighted{term: vocab[j], weight: w})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	terms := make([]string, len(ranked))
	for i, r := range ranked {
		terms[i] = r.term
	}
	return terms
}

// alphaTokens lowercases s and splits it into maximal alphabetic runs.
func alphaTokens(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return toks
}

// frequencyFallback is the coarse path used when clustering cannot run: all
// alphabetic tokens of length >= 4 across the texts, counted raw, top 10 by
// frequency. No stop-wording and no clustering — the flat single-token
// output is intentionally distinguishable from cluster labels.
func frequencyFallback(docs []string) []string {
	freq := make(map[string]int)
	for _, doc := range docs {
		for _, t := range alphaTokens(doc) {
			if utf8.RuneCountInString(t) >= fallbackMinLen {
				freq[t]++
			}
		}
	}
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > fallbackCount {
		terms = terms[:fallbackCount]
	}
	return terms
}
