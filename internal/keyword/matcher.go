package keyword

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ColonelBlimp/clapdetector/internal/dsp"
)

// Matcher defaults
const (
	DefaultBins      = 64
	DefaultThreshold = 0.85
)

var (
	// ErrNoMatch indicates no template scored at or above the threshold
	ErrNoMatch = errors.New("no matching keyword")
	// ErrInvalidBins indicates the histogram bucket count must be positive
	ErrInvalidBins = errors.New("match bins must be positive")
	// ErrInvalidMatchThreshold indicates the threshold must be between 0 and 1
	ErrInvalidMatchThreshold = errors.New("match threshold must be between 0.0 and 1.0")
)

// Match is the result of comparing a candidate against one template.
type Match struct {
	Keyword string  `json:"keyword" yaml:"keyword"`
	Score   float64 `json:"score" yaml:"score"`
}

// Matcher compares spectra by the cosine similarity of their relative
// histograms. Both spectra are reduced to min(Bins, len(a), len(b))
// buckets first, so templates recorded at different lengths still compare.
// Scores lie in [0, 1]; identical spectra score 1.
type Matcher struct {
	bins      int
	threshold float64
}

// NewMatcher creates a Matcher.
// bins comes from config match_bins, threshold from match_threshold.
func NewMatcher(bins int, threshold float64) (*Matcher, error) {
	if bins <= 0 {
		return nil, ErrInvalidBins
	}
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidMatchThreshold
	}
	return &Matcher{bins: bins, threshold: threshold}, nil
}

// Score returns the similarity of a and b. Empty or silent spectra score 0.
func (m *Matcher) Score(a, b dsp.Spectrum) float64 {
	n := min(m.bins, len(a), len(b))
	if n == 0 {
		return 0
	}

	ha := dsp.RelativeHistogram(a, n)
	hb := dsp.RelativeHistogram(b, n)

	na := floats.Norm(ha, 2)
	nb := floats.Norm(hb, 2)
	if na == 0 || nb == 0 {
		return 0
	}

	score := floats.Dot(ha, hb) / (na * nb)
	return max(0, min(1, score))
}

// Rank scores the candidate against every template, best first.
// Equal scores are ordered by name.
func (m *Matcher) Rank(candidate dsp.Spectrum, templates map[string]dsp.Spectrum) []Match {
	results := make([]Match, 0, len(templates))
	for name, t := range templates {
		results = append(results, Match{Keyword: name, Score: m.Score(candidate, t)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Keyword < results[j].Keyword
	})
	return results
}

// Match returns the best scoring template, or ErrNoMatch when the library is
// empty or the best score is below the threshold.
func (m *Matcher) Match(candidate dsp.Spectrum, templates map[string]dsp.Spectrum) (Match, error) {
	ranked := m.Rank(candidate, templates)
	if len(ranked) == 0 || ranked[0].Score < m.threshold {
		return Match{}, ErrNoMatch
	}
	return ranked[0], nil
}

// Threshold returns the decision threshold
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Bins returns the histogram bucket count
func (m *Matcher) Bins() int {
	return m.bins
}
