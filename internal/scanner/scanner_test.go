package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const (
	testMD5    = "44d88612fea8a8f36de82e1278abb02f"
	testSHA1   = "3395856ce81f2b7382dee72602f798b642f14140"
	testSHA256 = "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file %s: %v", name, err)
		}
	}
}

func TestIndicatorScanner(t *testing.T) {
	tmpDir := t.TempDir()

	writeFiles(t, tmpDir, map[string]string{
		"iocs.txt": "# campaign list\n" + testMD5 + "\nsha1: " + testSHA1 + "\n",
		"feed.yaml": `
campaign: eicar
samples:
  - sha256: ` + testSHA256 + `
  - md5: ` + testMD5 + `
`,
		"notes.md": "not a hash: 12345 and deadbeef\n",
	})

	indicators, err := NewIndicatorScanner(tmpDir).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(indicators) != 3 {
		t.Fatalf("Expected 3 distinct indicators, got %d: %+v", len(indicators), indicators)
	}

	byHash := make(map[string]Indicator)
	for _, ind := range indicators {
		byHash[ind.Hash] = ind
	}

	sha256, ok := byHash[testSHA256]
	if !ok {
		t.Fatal("Expected sha256 indicator from feed.yaml")
	}
	if sha256.Kind != KindSHA256 || sha256.Context != "yaml" || sha256.Line != 4 {
		t.Fatalf("Unexpected sha256 indicator: %+v", sha256)
	}

	// feed.yaml sorts before iocs.txt, so the md5 is attributed there
	md5 := byHash[testMD5]
	if filepath.Base(md5.File) != "feed.yaml" || md5.Kind != KindMD5 {
		t.Fatalf("Unexpected md5 indicator: %+v", md5)
	}

	sha1 := byHash[testSHA1]
	if sha1.Kind != KindSHA1 || sha1.Line != 3 || sha1.Context != "text" {
		t.Fatalf("Unexpected sha1 indicator: %+v", sha1)
	}
}

func TestIndicatorScanner_SingleFileAndCase(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "one.txt")
	writeFiles(t, tmpDir, map[string]string{
		"one.txt": "upper " + "44D88612FEA8A8F36DE82E1278ABB02F" + " lower " + testMD5 + "\n",
	})

	indicators, err := NewIndicatorScanner(path).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(indicators) != 1 {
		t.Fatalf("Expected case-insensitive dedupe to 1 indicator, got %+v", indicators)
	}
	if indicators[0].Hash != testMD5 {
		t.Fatalf("Expected lowercased hash, got %s", indicators[0].Hash)
	}
}

func TestIndicatorScanner_SkipsHiddenAndBinary(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		".git/objects.txt": testMD5 + "\n",
		".hidden.txt":      testSHA1 + "\n",
	})
	binary := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, []byte(testSHA256)...)
	if err := os.WriteFile(filepath.Join(tmpDir, "tool.bin"), binary, 0644); err != nil {
		t.Fatalf("Failed to write binary: %v", err)
	}

	indicators, err := NewIndicatorScanner(tmpDir).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(indicators) != 0 {
		t.Fatalf("Expected hidden and binary files to be skipped, got %+v", indicators)
	}
}

func TestIndicatorScanner_IgnoresOtherLengths(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"mixed.txt": "short deadbeefdeadbeef\n" +
			"forty-eight aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n" +
			"embedded x" + testMD5 + "y\n" +
			"too long " + testSHA256 + "00\n",
	})

	indicators, err := NewIndicatorScanner(tmpDir).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(indicators) != 0 {
		t.Fatalf("Expected no indicators, got %+v", indicators)
	}
}

func TestIndicatorScanner_InvalidYAMLFallsBack(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"broken.yml": "key: [unterminated\n" + testSHA1 + "\n",
	})

	indicators, err := NewIndicatorScanner(tmpDir).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(indicators) != 1 || indicators[0].Context != "text" || indicators[0].Line != 2 {
		t.Fatalf("Expected line-scan fallback, got %+v", indicators)
	}
}

func TestIndicatorScanner_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"a.txt": testMD5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewIndicatorScanner(tmpDir).Scan(ctx); err == nil {
		t.Fatal("Expected cancelled scan to fail")
	}
}

func TestIndicatorScanner_MissingRoot(t *testing.T) {
	if _, err := NewIndicatorScanner(filepath.Join(t.TempDir(), "nope")).Scan(context.Background()); err == nil {
		t.Fatal("Expected error for missing root")
	}
}
