package scanner

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Hex runs bounded by non-word characters; length decides the kind
var hashPattern = regexp.MustCompile(`\b[A-Fa-f0-9]{32,64}\b`)

// scanText scans any text file line by line for hex digests
func scanText(filePath string) ([]Indicator, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var found []Indicator
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		found = append(found, matchLine(scanner.Text(), filePath, lineNum, "text")...)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return found, nil
}

// matchLine extracts every digest-shaped token from a single line
func matchLine(line, filePath string, lineNum int, context string) []Indicator {
	var found []Indicator
	for _, match := range hashPattern.FindAllString(line, -1) {
		kind, ok := kindForLength(len(match))
		if !ok {
			continue
		}
		found = append(found, Indicator{
			Hash:    strings.ToLower(match),
			Kind:    kind,
			File:    filePath,
			Line:    lineNum,
			Context: context,
		})
	}
	return found
}
