package filescan

import (
	"net/url"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// Parser converts a response body into structured values. It is the
// capability Clusters depends on.
type Parser interface {
	Unmarshal(data []byte, v any) error
}

// JSONParser is the default Parser.
type JSONParser struct{}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Unmarshal implements Parser.
func (JSONParser) Unmarshal(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
