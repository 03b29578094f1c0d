package inventory

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// DiffResult is the component-level difference between two snapshots.
type DiffResult struct {
	Added      int      `json:"added"`
	Removed    int      `json:"removed"`
	Updated    int      `json:"updated"`
	AddedIDs   []string `json:"addedIds"`
	RemovedIDs []string `json:"removedIds"`
	UpdatedIDs []string `json:"updatedIds"`
}

// Summary renders the counts as the change summary stored on a snapshot.
func (d DiffResult) Summary() string {
	return fmt.Sprintf("%d added, %d removed, %d updated", d.Added, d.Removed, d.Updated)
}

// Diff compares component sets by id. A shared id whose version differs
// counts as updated. A nil previous means every current component is added.
func Diff(current, previous []BOMItem) DiffResult {
	curVersions := versionsByID(current)
	prevVersions := versionsByID(previous)

	cur := mapset.NewThreadUnsafeSetFromMapKeys(curVersions)
	prev := mapset.NewThreadUnsafeSetFromMapKeys(prevVersions)

	added := sorted(cur.Difference(prev))
	removed := sorted(prev.Difference(cur))
	var updated []string
	for _, id := range sorted(cur.Intersect(prev)) {
		if curVersions[id] != prevVersions[id] {
			updated = append(updated, id)
		}
	}

	return DiffResult{
		Added:      len(added),
		Removed:    len(removed),
		Updated:    len(updated),
		AddedIDs:   nonNil(added),
		RemovedIDs: nonNil(removed),
		UpdatedIDs: nonNil(updated),
	}
}

func versionsByID(items []BOMItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, item := range items {
		out[item.ComponentID] = item.Version
	}
	return out
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
