package ledger

import (
	"strings"

	"pocketfin/internal/core"
)

// Mapper resolves raw category labels to aggregation buckets. It is a pure
// view over the active mappings of a single request; nothing is cached
// across requests.
type Mapper struct {
	byRaw map[string]core.CategoryMapping
}

// NewMapper builds a mapper from the active mappings. Lookup is exact and
// case-sensitive; whatever trimming applies happened at ingestion.
func NewMapper(active []core.CategoryMapping) *Mapper {
	m := &Mapper{byRaw: make(map[string]core.CategoryMapping, len(active))}
	for _, c := range active {
		m.byRaw[c.Raw] = c
	}
	return m
}

// ResolveBucket returns the bucket for a raw category, or the Uncategorized
// sentinel when no active mapping matches (or the mapping has no bucket).
func (m *Mapper) ResolveBucket(rawCategory string) string {
	c, ok := m.byRaw[rawCategory]
	if !ok || strings.TrimSpace(c.Bucket) == "" {
		return core.UncategorizedBucket
	}
	return c.Bucket
}
