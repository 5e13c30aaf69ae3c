package files

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteJSONAtomic(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	tmpDir := t.TempDir()

	tests := []struct {
		name       string
		outputFile string
		data       interface{}
	}{
		{
			name:       "Plain file in existing directory",
			outputFile: filepath.Join(tmpDir, "out.json"),
			data:       payload{Name: "manifest", Count: 3},
		},
		{
			name:       "Nested directory is created",
			outputFile: filepath.Join(tmpDir, "nested", "deep", "out.json"),
			data:       payload{Name: "nested", Count: 1},
		},
		{
			name:       "Overwrite existing file",
			outputFile: filepath.Join(tmpDir, "out.json"),
			data:       payload{Name: "second", Count: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := WriteJSONAtomic(tt.outputFile, tt.data); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			raw, err := os.ReadFile(tt.outputFile)
			if err != nil {
				t.Fatalf("Failed to read back %s: %v", tt.outputFile, err)
			}

			var got payload
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("Output is not valid JSON: %v", err)
			}
			if got != tt.data.(payload) {
				t.Errorf("Expected %+v, got %+v", tt.data, got)
			}
		})
	}
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	outputFile := filepath.Join(tmpDir, "out.json")

	if err := WriteJSONAtomic(outputFile, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to list %s: %v", tmpDir, err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only out.json, got %v", names)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("No home directory: %v", err)
	}

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "Tilde prefix", input: "~/reports", expect: filepath.Join(home, "reports")},
		{name: "Absolute path untouched", input: "/tmp/reports", expect: "/tmp/reports"},
		{name: "Relative path untouched", input: "reports", expect: "reports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Errorf("Expected %s, got %s", tt.expect, got)
			}
		})
	}
}
