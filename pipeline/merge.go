package pipeline

import "github.com/aluiziolira/leadscout/models"

// Merge concatenates existing and incoming and keeps one record per key: the
// last one, placed where that last occurrence sits. combine folds an earlier
// record into the later one that replaces it. Records with an empty key are
// dropped.
func Merge[T any](existing, incoming []T, key func(T) string, combine func(prev, next T) T) []T {
	all := make([]T, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)

	last := make(map[string]int, len(all))
	merged := make(map[string]T, len(all))
	for i, record := range all {
		k := key(record)
		if k == "" {
			continue
		}
		if prev, ok := merged[k]; ok && combine != nil {
			record = combine(prev, record)
		}
		merged[k] = record
		last[k] = i
	}

	out := make([]T, 0, len(merged))
	for i, record := range all {
		k := key(record)
		if k == "" || last[k] != i {
			continue
		}
		out = append(out, merged[k])
	}
	return out
}

// MergeLeads de-duplicates leads by company name, last write wins.
func MergeLeads(existing, incoming []*models.Lead) []*models.Lead {
	return Merge(existing, incoming, (*models.Lead).Key, nil)
}
