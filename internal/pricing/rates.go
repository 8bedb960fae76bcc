// Package pricing implements the cache-impact cost model of §4.6: given
// an analyzer breakdown and a model's cache pricing, it estimates the
// token and dollar cost of carrying an untrimmed transcript versus a
// trimmed one, and the number of turns needed to recoup the one-time
// cost of a fresh cache write.
package pricing

// Rates is a model's per-million-token cache pricing. Grounded on the
// teacher's enrichment.EnrichmentConfig pattern of carrying a model name
// alongside a small fixed-shape config struct rather than fetching
// pricing from a remote catalog.
type Rates struct {
	CacheWritePerMTok float64
	CacheReadPerMTok  float64
}

// ModelRates is a fixed lookup table, not fetched from anywhere, matching
// the glossary's "fixed" framing for context limit and system overhead.
var ModelRates = map[string]Rates{
	"opus-4-6":   {CacheWritePerMTok: 6.25, CacheReadPerMTok: 0.50},
	"sonnet-4-6": {CacheWritePerMTok: 1.25, CacheReadPerMTok: 0.10},
	"haiku-4-6":  {CacheWritePerMTok: 0.31, CacheReadPerMTok: 0.025},
}

// DefaultCacheHitRate is the steady-state fraction of a turn's prompt
// served from the upstream cache, per §4.6.
const DefaultCacheHitRate = 0.90
