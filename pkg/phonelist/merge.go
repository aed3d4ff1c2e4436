package phonelist

import (
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// MergeResult is the outcome of merging candidates into an existing list
type MergeResult struct {
	// Merged is the existing list followed by every added item
	Merged []string

	// Added are the candidates that weren't in the existing list, in the order
	// they were first seen. Candidates repeated within a batch appear once.
	Added []string

	// Duplicates are the candidates already in the existing list, one entry per
	// occurrence in candidates
	Duplicates []string
}

// HasChanges returns whether the merge produced any new items
func (r *MergeResult) HasChanges() bool {
	return len(r.Added) > 0
}

// Merge combines normalized candidates with an existing list. Neither input is
// modified, so a merge against a fresh snapshot can always be recomputed.
func Merge(existing, candidates []string) *MergeResult {
	present := hashset.New()
	for _, item := range existing {
		present.Add(item)
	}

	added := linkedhashset.New()
	var duplicates []string
	for _, candidate := range candidates {
		if present.Contains(candidate) {
			duplicates = append(duplicates, candidate)
			continue
		}
		added.Add(candidate)
	}

	res := &MergeResult{
		Merged:     make([]string, 0, len(existing)+added.Size()),
		Added:      toStrings(added.Values()),
		Duplicates: duplicates,
	}
	res.Merged = append(res.Merged, existing...)
	res.Merged = append(res.Merged, res.Added...)
	return res
}

func toStrings(values []interface{}) []string {
	res := make([]string, len(values))
	for i, value := range values {
		res[i] = value.(string)
	}
	return res
}
