package model

import "sort"

// CategoryChange is an address present in both sessions whose category or
// size changed between them.
type CategoryChange struct {
	Address      string   `json:"address"`
	PreviousType Category `json:"previous_type"`
	CurrentType  Category `json:"current_type"`
	PreviousSize int64    `json:"previous_size"`
	CurrentSize  int64    `json:"current_size"`
}

// SessionDiff holds the differences between two crawl sessions.
type SessionDiff struct {
	// PreviousID and CurrentID identify the compared sessions.
	PreviousID string `json:"previous_id"`
	CurrentID  string `json:"current_id"`

	// Added are records only the current session has.
	Added []DiscoveryRecord `json:"added,omitempty"`

	// Removed are records only the previous session has.
	Removed []DiscoveryRecord `json:"removed,omitempty"`

	// Changed are addresses whose category or size differs.
	Changed []CategoryChange `json:"changed,omitempty"`

	// UnchangedCount is the number of identical addresses.
	UnchangedCount int `json:"unchanged_count"`

	// CountDelta is the per-category record count change, current minus previous.
	CountDelta map[Category]int `json:"count_delta"`
}

// Empty reports whether the sessions hold the same records.
func (d *SessionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffSessions compares two sessions by address. Added keeps the fetch
// order of current; Removed keeps the fetch order of previous; Changed is
// sorted by address.
func DiffSessions(previous, current *CrawlSession) *SessionDiff {
	diff := &SessionDiff{
		PreviousID: previous.ID,
		CurrentID:  current.ID,
		CountDelta: make(map[Category]int),
	}

	before := make(map[string]DiscoveryRecord, len(previous.Records))
	for _, r := range previous.Records {
		before[r.Address] = r
	}
	after := make(map[string]DiscoveryRecord, len(current.Records))
	for _, r := range current.Records {
		after[r.Address] = r
	}

	for _, r := range current.Records {
		old, ok := before[r.Address]
		switch {
		case !ok:
			diff.Added = append(diff.Added, r)
		case old.Category != r.Category || old.ByteSize != r.ByteSize:
			diff.Changed = append(diff.Changed, CategoryChange{
				Address:      r.Address,
				PreviousType: old.Category,
				CurrentType:  r.Category,
				PreviousSize: old.ByteSize,
				CurrentSize:  r.ByteSize,
			})
		default:
			diff.UnchangedCount++
		}
	}
	for _, r := range previous.Records {
		if _, ok := after[r.Address]; !ok {
			diff.Removed = append(diff.Removed, r)
		}
	}
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].Address < diff.Changed[j].Address
	})

	prevCounts := previous.CategoryCounts()
	currCounts := current.CategoryCounts()
	for _, c := range Categories() {
		if delta := currCounts[c] - prevCounts[c]; delta != 0 {
			diff.CountDelta[c] = delta
		}
	}
	return diff
}
