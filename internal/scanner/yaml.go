package scanner

import (
	"os"

	"gopkg.in/yaml.v3"
)

// scanYAML walks a YAML document and extracts digests from scalar values.
// Comments are not inspected.
func scanYAML(filePath string) ([]Indicator, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		// Not valid YAML; fall back to line scanning
		return scanText(filePath)
	}

	var found []Indicator
	walkYAML(&root, func(node *yaml.Node) {
		found = append(found, matchLine(node.Value, filePath, node.Line, "yaml")...)
	})
	return found, nil
}

func walkYAML(node *yaml.Node, visit func(*yaml.Node)) {
	if node == nil {
		return
	}
	if node.Kind == yaml.ScalarNode {
		visit(node)
		return
	}
	if node.Kind == yaml.AliasNode {
		return
	}
	for _, child := range node.Content {
		walkYAML(child, visit)
	}
}
