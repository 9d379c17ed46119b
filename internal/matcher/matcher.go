// Package matcher pairs fixture registry records with odds provider events.
//
// Each candidate is scored on three signals: kickoff within tolerance (0.5),
// normalized home name equal (0.25) and normalized away name equal (0.25).
// With the default threshold of 0.95 only a candidate on which all three
// signals agree is accepted.
package matcher

import (
	"strings"
	"time"
	"unicode"

	"github.com/rickgao/odds-history/internal/model"
)

// Signal weights.
const (
	KickoffWeight = 0.5
	HomeWeight    = 0.25
	AwayWeight    = 0.25
)

// Defaults.
const (
	DefaultKickoffTolerance = 300 * time.Second
	DefaultMinConfidence    = 0.95
)

// Result is the outcome of matching one fixture. Found is false when no
// candidate cleared the threshold; callers treat that as "no odds available".
type Result struct {
	Event      model.ProviderEvent
	Confidence float64
	Found      bool
}

// Matcher scores candidates against fixtures.
type Matcher struct {
	tolerance     time.Duration
	minConfidence float64
}

// New creates a Matcher. Zero values select the defaults.
func New(tolerance time.Duration, minConfidence float64) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultKickoffTolerance
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Matcher{tolerance: tolerance, minConfidence: minConfidence}
}

// Score returns the confidence in [0,1] that ev is the same match as f.
// A candidate without a parseable commence time scores 0 on kickoff.
func (m *Matcher) Score(f model.Fixture, ev model.ProviderEvent) float64 {
	var score float64
	if !ev.CommenceTime.IsZero() {
		diff := ev.CommenceTime.Unix() - f.KickoffTS
		if diff < 0 {
			diff = -diff
		}
		if diff <= int64(m.tolerance/time.Second) {
			score += KickoffWeight
		}
	}
	if NormalizeTeam(f.Home) == NormalizeTeam(ev.HomeTeam) {
		score += HomeWeight
	}
	if NormalizeTeam(f.Away) == NormalizeTeam(ev.AwayTeam) {
		score += AwayWeight
	}
	return score
}

// Match returns the best scoring candidate for f. On equal scores the
// earlier candidate wins.
func (m *Matcher) Match(f model.Fixture, candidates []model.ProviderEvent) Result {
	best := -1
	var bestScore float64
	for i, ev := range candidates {
		s := m.Score(f, ev)
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < m.minConfidence {
		return Result{Confidence: bestScore}
	}
	return Result{Event: candidates[best], Confidence: bestScore, Found: true}
}

// NormalizeTeam lowercases a team name, strips punctuation and collapses
// whitespace.
func NormalizeTeam(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
