package analyzer

import (
	"testing"

	"github.com/ppiankov/filescan/internal/filescan"
)

func TestAnalyzeClusters(t *testing.T) {
	clusters := []filescan.Cluster{
		{ID: "c1", Label: "small clean", Size: 3, AvgPositives: 0},
		{ID: "c2", Label: "big bad", Size: 120, AvgPositives: 31.5},
		{ID: "c3", Label: "grey", Size: 40, AvgPositives: 1.2},
	}

	result := AnalyzeClusters("2024-03-05", clusters, DefaultConfig())

	if result.Date != "2024-03-05" {
		t.Fatalf("unexpected date %q", result.Date)
	}
	if result.Summary.TotalClusters != 3 || result.Summary.TotalFiles != 163 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.CleanClusters != 1 {
		t.Fatalf("expected 1 clean cluster, got %d", result.Summary.CleanClusters)
	}
	if len(result.Summary.MaliciousClusters) != 1 || result.Summary.MaliciousClusters[0] != "c2" {
		t.Fatalf("expected c2 malicious, got %v", result.Summary.MaliciousClusters)
	}
	if len(result.Summary.SuspiciousClusters) != 1 || result.Summary.SuspiciousClusters[0] != "c3" {
		t.Fatalf("expected c3 suspicious, got %v", result.Summary.SuspiciousClusters)
	}

	order := []string{"c2", "c3", "c1"}
	for i, c := range result.Clusters {
		if c.ID != order[i] {
			t.Fatalf("position %d: expected %s, got %s", i, order[i], c.ID)
		}
	}
}

func TestAnalyzeClusters_Empty(t *testing.T) {
	result := AnalyzeClusters("2024-03-05", nil, DefaultConfig())
	if result.Summary.TotalClusters != 0 || len(result.Clusters) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
