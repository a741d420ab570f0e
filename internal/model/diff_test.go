package model

import "testing"

func TestDiffSessions(t *testing.T) {
	t.Parallel()

	previous := &CrawlSession{
		ID: "old",
		Records: []DiscoveryRecord{
			{Address: "http://a.test/", Category: CategoryHTML, ByteSize: 100},
			{Address: "http://a.test/gone.css", Category: CategoryCSS, ByteSize: 10},
			{Address: "http://a.test/logo", Category: CategoryImage, ByteSize: 50},
		},
	}
	current := &CrawlSession{
		ID: "new",
		Records: []DiscoveryRecord{
			{Address: "http://a.test/", Category: CategoryHTML, ByteSize: 100},
			{Address: "http://a.test/logo", Category: CategoryError},
			{Address: "http://a.test/new.pdf", Category: CategoryPDF, ByteSize: 2048},
		},
	}

	t.Run("detects added removed and changed", func(t *testing.T) {
		t.Parallel()

		diff := DiffSessions(previous, current)
		if diff.PreviousID != "old" || diff.CurrentID != "new" {
			t.Errorf("ids = %q, %q", diff.PreviousID, diff.CurrentID)
		}
		if len(diff.Added) != 1 || diff.Added[0].Address != "http://a.test/new.pdf" {
			t.Errorf("Added = %+v", diff.Added)
		}
		if len(diff.Removed) != 1 || diff.Removed[0].Address != "http://a.test/gone.css" {
			t.Errorf("Removed = %+v", diff.Removed)
		}
		if len(diff.Changed) != 1 {
			t.Fatalf("Changed = %+v", diff.Changed)
		}
		change := diff.Changed[0]
		if change.PreviousType != CategoryImage || change.CurrentType != CategoryError || change.PreviousSize != 50 {
			t.Errorf("change = %+v", change)
		}
		if diff.UnchangedCount != 1 {
			t.Errorf("UnchangedCount = %d, want 1", diff.UnchangedCount)
		}
		if diff.Empty() {
			t.Error("expected a non-empty diff")
		}
	})

	t.Run("count delta skips unchanged categories", func(t *testing.T) {
		t.Parallel()

		diff := DiffSessions(previous, current)
		want := map[Category]int{CategoryCSS: -1, CategoryImage: -1, CategoryError: 1, CategoryPDF: 1}
		if len(diff.CountDelta) != len(want) {
			t.Fatalf("CountDelta = %v, want %v", diff.CountDelta, want)
		}
		for c, n := range want {
			if diff.CountDelta[c] != n {
				t.Errorf("CountDelta[%s] = %d, want %d", c, diff.CountDelta[c], n)
			}
		}
	})

	t.Run("identical sessions are empty", func(t *testing.T) {
		t.Parallel()

		diff := DiffSessions(previous, previous)
		if !diff.Empty() || diff.UnchangedCount != 3 {
			t.Errorf("diff = %+v", diff)
		}
	})
}
