package core

import (
	"sort"

	"custodycore/pkg/domain"
)

// IsDuplicateSerial reports whether candidate collides with any stored
// serial other than ignore. Comparison is trimmed and case-insensitive.
func IsDuplicateSerial(view domain.RuleView, candidate, ignore string) bool {
	folded := domain.FoldSerial(candidate)
	if folded == "" {
		return false
	}
	skip := domain.FoldSerial(ignore)
	for _, rec := range view.ListAll() {
		existing := domain.FoldSerial(rec.Serial)
		if skip != "" && existing == skip {
			continue
		}
		if existing == folded {
			return true
		}
	}
	return false
}

// DuplicateCount is one folded value seen more than once.
type DuplicateCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DuplicateReport folds values and returns those occurring at least twice,
// ordered by value. Blank values are ignored.
func DuplicateReport(values []string) []DuplicateCount {
	counts := make(map[string]int)
	for _, v := range values {
		if key := domain.FoldSerial(v); key != "" {
			counts[key]++
		}
	}
	out := make([]DuplicateCount, 0)
	for value, n := range counts {
		if n > 1 {
			out = append(out, DuplicateCount{Value: value, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
