package scanner

// Indicator represents a file hash found in an indicator list or source file
type Indicator struct {
	Hash    string `json:"hash"`
	Kind    Kind   `json:"kind"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Context string `json:"context,omitempty"` // e.g., "text", "yaml"
}

// Kind represents the digest algorithm inferred from a hash length
type Kind string

const (
	KindMD5    Kind = "md5"
	KindSHA1   Kind = "sha1"
	KindSHA256 Kind = "sha256"
)

// kindForLength maps a hex digest length to its algorithm
func kindForLength(n int) (Kind, bool) {
	switch n {
	case 32:
		return KindMD5, true
	case 40:
		return KindSHA1, true
	case 64:
		return KindSHA256, true
	}
	return "", false
}
