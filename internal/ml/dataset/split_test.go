package dataset

import (
	"testing"
	"time"

	"kassandra/internal/domain"
	"kassandra/internal/fusion"
)

func fusedTable(t *testing.T, n int) *fusion.Table {
	t.Helper()
	bars := make([]domain.Bar, n+1)
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = domain.Bar{
			Date:   start.AddDate(0, 0, i),
			Close:  100 + float64(i),
			Volume: 1000,
		}
	}
	table, err := fusion.NewEngine(fusion.DefaultConfig()).Fuse(bars)
	if err != nil {
		t.Fatalf("fuse failed: %v", err)
	}
	if len(table.Rows) != n {
		t.Fatalf("expected %d fused rows, got %d", n, len(table.Rows))
	}
	return table
}

func TestChronologicalSplitCounts(t *testing.T) {
	table := fusedTable(t, 100)
	split, err := ChronologicalSplit(table, 0.2)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if len(split.XTrain) != 80 || len(split.YTrain) != 80 {
		t.Fatalf("expected 80 train rows, got %d/%d", len(split.XTrain), len(split.YTrain))
	}
	if len(split.XTest) != 20 || len(split.YTest) != 20 || len(split.TestRows) != 20 {
		t.Fatalf("expected 20 test rows, got %d/%d/%d", len(split.XTest), len(split.YTest), len(split.TestRows))
	}
}

func TestChronologicalSplitPreservesOrder(t *testing.T) {
	table := fusedTable(t, 50)
	split, err := ChronologicalSplit(table, 0.3)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	lastTrain := table.Rows[len(table.Rows)-len(split.TestRows)-1].Date
	firstTest := split.TestRows[0].Date
	if !lastTrain.Before(firstTest) {
		t.Fatalf("expected max(train date) < min(test date), got %s vs %s", lastTrain, firstTest)
	}
	for i := 1; i < len(split.TestRows); i++ {
		if !split.TestRows[i-1].Date.Before(split.TestRows[i].Date) {
			t.Fatal("test rows not in chronological order")
		}
	}
}

func TestChronologicalSplitRejectsBadFraction(t *testing.T) {
	table := fusedTable(t, 10)
	for _, f := range []float64{0, 1, -0.2, 1.5} {
		if _, err := ChronologicalSplit(table, f); err == nil {
			t.Fatalf("expected error for test fraction %f", f)
		}
	}
}

func TestChronologicalSplitRejectsEmptyTable(t *testing.T) {
	if _, err := ChronologicalSplit(&fusion.Table{}, 0.2); err == nil {
		t.Fatal("expected error for empty table")
	}
	if _, err := ChronologicalSplit(nil, 0.2); err == nil {
		t.Fatal("expected error for nil table")
	}
}
