package pricing

import (
	"fmt"
	"math"

	"github.com/suykerbuyk/cmv/internal/analyze"
)

// removalRatioCap bounds removal_ratio, per §4.6: even an aggressive trim
// never claims to remove more than 95% of context.
const removalRatioCap = 0.95

// Report is the cache-impact model's output for a single analysis,
// at a given model's rates and cache hit rate.
type Report struct {
	Model              string
	PreTrimTokens      int
	PostTrimTokens     int
	RemovalRatio       float64
	ColdCacheFirstCost float64
	WarmCacheCost      float64
	PreTrimSteadyCost  float64
	Penalty            float64
	SavingsPerTurn     float64
	BreakEvenTurns     int // -1 means infinite (savings <= 0)
	Projections        map[int]Projection
}

// Projection is the without-trim vs. with-trim total cost over N turns.
type Projection struct {
	WithoutTrim   float64
	WithTrim      float64
	SavedPercent  float64
}

// Analyze computes the cache-impact report for an analyzer breakdown at
// the named model's rates and the given cache hit rate (0 selects the
// §4.6 default of 0.90).
func Analyze(report *analyze.SessionAnalysis, model string, cacheHitRate float64) (*Report, error) {
	rates, ok := ModelRates[model]
	if !ok {
		return nil, fmt.Errorf("unknown pricing model %q", model)
	}
	if cacheHitRate <= 0 {
		cacheHitRate = DefaultCacheHitRate
	}

	preTrimTokens := report.EstimatedTokens
	b := report.Breakdown

	removedBytes := float64(b.FileHistory.Bytes) +
		float64(b.ThinkingSignatures.Bytes) +
		0.7*float64(b.ToolResults.Bytes) -
		35*float64(b.ToolResults.Count) +
		0.3*float64(b.ToolUseRequests.Bytes)
	if removedBytes < 0 {
		removedBytes = 0
	}

	var removalRatio float64
	if report.TotalBytes > 0 {
		removalRatio = removedBytes / float64(report.TotalBytes)
	}
	removalRatio = clamp(removalRatio, 0, removalRatioCap)

	postTrimTokens := int(math.Round(
		(float64(preTrimTokens)-analyze.SystemOverhead)*(1-removalRatio) + analyze.SystemOverhead,
	))

	rep := costModel(preTrimTokens, postTrimTokens, rates, cacheHitRate)
	rep.Model = model
	rep.RemovalRatio = removalRatio
	return rep, nil
}

// FromTokens computes the cost model directly from explicit pre- and
// post-trim token counts, bypassing removal-ratio derivation. Used when
// the caller already has both figures (e.g. a hook comparing a
// transcript's size before and after an actual trim run).
func FromTokens(preTrimTokens, postTrimTokens int, model string, cacheHitRate float64) (*Report, error) {
	rates, ok := ModelRates[model]
	if !ok {
		return nil, fmt.Errorf("unknown pricing model %q", model)
	}
	if cacheHitRate <= 0 {
		cacheHitRate = DefaultCacheHitRate
	}
	rep := costModel(preTrimTokens, postTrimTokens, rates, cacheHitRate)
	rep.Model = model
	if preTrimTokens > 0 {
		rep.RemovalRatio = 1 - float64(postTrimTokens)/float64(preTrimTokens)
	}
	return rep, nil
}

// costModel implements §4.6's per-turn cost formulas and break-even/
// projection math given explicit pre- and post-trim token counts —
// factored out so scenario 8's worked example can be checked directly
// against the formula without first reconstructing a plausible
// analyzer breakdown.
func costModel(preTrimTokens, postTrimTokens int, rates Rates, cacheHitRate float64) *Report {
	coldCacheFirst := float64(postTrimTokens) * rates.CacheWritePerMTok / 1e6
	postTrimSteady := turnCost(postTrimTokens, cacheHitRate, rates.CacheReadPerMTok, 1-cacheHitRate, rates.CacheWritePerMTok)
	preTrimSteady := turnCost(preTrimTokens, cacheHitRate, rates.CacheReadPerMTok, 1-cacheHitRate, rates.CacheWritePerMTok)

	penalty := coldCacheFirst - preTrimSteady
	savings := preTrimSteady - postTrimSteady

	breakEven := -1
	if savings > 0 {
		breakEven = int(math.Ceil(penalty/savings)) + 1
	}

	rep := &Report{
		PreTrimTokens:      preTrimTokens,
		PostTrimTokens:     postTrimTokens,
		ColdCacheFirstCost: coldCacheFirst,
		WarmCacheCost:      postTrimSteady,
		PreTrimSteadyCost:  preTrimSteady,
		Penalty:            penalty,
		SavingsPerTurn:     savings,
		BreakEvenTurns:     breakEven,
		Projections:        map[int]Projection{},
	}

	for _, n := range []int{5, 10, 20, 50} {
		withoutTrim := preTrimSteady * float64(n)
		withTrim := coldCacheFirst + postTrimSteady*float64(n-1)
		var saved float64
		if withoutTrim > 0 {
			saved = (withoutTrim - withTrim) / withoutTrim
		}
		rep.Projections[n] = Projection{
			WithoutTrim:  withoutTrim,
			WithTrim:     withTrim,
			SavedPercent: saved,
		}
	}

	return rep
}

// turnCost computes hitFraction·tokens·hitRate + missFraction·tokens·missRate,
// in dollars per million tokens.
func turnCost(tokens int, hitFraction, hitRatePerMTok, missFraction, missRatePerMTok float64) float64 {
	t := float64(tokens)
	return hitFraction*t*hitRatePerMTok/1e6 + missFraction*t*missRatePerMTok/1e6
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
