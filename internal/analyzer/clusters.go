package analyzer

import (
	"fmt"
	"sort"

	"github.com/ppiankov/filescan/internal/filescan"
)

// ClusterResult contains the analysis of a day's similarity clusters
type ClusterResult struct {
	Date     string             `json:"date"`
	Clusters []*ClusterAnalysis `json:"clusters"`
	Summary  ClusterSummary     `json:"summary"`
}

// ClusterAnalysis contains the verdict for one cluster
type ClusterAnalysis struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Size         int     `json:"size"`
	AvgPositives float64 `json:"avg_positives"`
	Status       Status  `json:"status"`
	Message      string  `json:"message"`
}

// ClusterSummary contains high-level summary
type ClusterSummary struct {
	TotalClusters      int      `json:"total_clusters"`
	TotalFiles         int      `json:"total_files"`
	CleanClusters      int      `json:"clean_clusters"`
	MaliciousClusters  []string `json:"malicious_clusters,omitempty"`
	SuspiciousClusters []string `json:"suspicious_clusters,omitempty"`
}

// AnalyzeClusters grades each cluster by its average detection count.
// Clusters are ordered largest first.
func AnalyzeClusters(date string, clusters []filescan.Cluster, config Config) *ClusterResult {
	config = normalize(config)
	result := &ClusterResult{
		Date:     date,
		Clusters: make([]*ClusterAnalysis, 0, len(clusters)),
	}

	for _, c := range clusters {
		analysis := &ClusterAnalysis{
			ID:           c.ID,
			Label:        c.Label,
			Size:         c.Size,
			AvgPositives: c.AvgPositives,
		}

		switch {
		case c.AvgPositives >= float64(config.MaliciousThreshold):
			analysis.Status = StatusMalicious
			result.Summary.MaliciousClusters = append(result.Summary.MaliciousClusters, c.ID)
		case c.AvgPositives >= float64(config.SuspiciousThreshold):
			analysis.Status = StatusSuspicious
			result.Summary.SuspiciousClusters = append(result.Summary.SuspiciousClusters, c.ID)
		default:
			analysis.Status = StatusClean
			result.Summary.CleanClusters++
		}
		analysis.Message = fmt.Sprintf("%d files, %.1f average detections", c.Size, c.AvgPositives)

		result.Summary.TotalClusters++
		result.Summary.TotalFiles += c.Size
		result.Clusters = append(result.Clusters, analysis)
	}

	sort.SliceStable(result.Clusters, func(i, j int) bool {
		return result.Clusters[i].Size > result.Clusters[j].Size
	})

	return result
}
