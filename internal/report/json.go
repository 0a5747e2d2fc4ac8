package report

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/filescan/internal/analyzer"
)

// JSONReporter generates JSON reports
type JSONReporter struct {
	writer io.Writer
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

// Generate generates a JSON report
func (r *JSONReporter) Generate(data Data) error {
	data.Timestamp = data.Timestamp.UTC()
	return r.encode(data)
}

// GenerateClusters generates a JSON cluster report
func (r *JSONReporter) GenerateClusters(data ClusterData) error {
	data.Timestamp = data.Timestamp.UTC()
	if data.Clusters == nil {
		data.Clusters = []*analyzer.ClusterAnalysis{}
	}
	return r.encode(data)
}

func (r *JSONReporter) encode(v any) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
