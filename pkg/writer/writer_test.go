package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

type testData struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func TestJSONWriter_Write(t *testing.T) {
	data := testData{Name: `App\Service\UserService`, Value: 42}

	t.Run("compact output", func(t *testing.T) {
		out, err := Bytes[testData](NewJSONWriter[testData](), data)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		expected := `{"name":"App\\Service\\UserService","value":42}` + "\n"
		if string(out) != expected {
			t.Errorf("got %q, want %q", out, expected)
		}
	})

	t.Run("pretty output", func(t *testing.T) {
		out, err := Bytes[testData](NewPrettyJSONWriter[testData](), data)
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if !bytes.Contains(out, []byte("\n  \"value\": 42")) {
			t.Errorf("expected indented output, got %q", out)
		}
	})
}

func TestGzipWriter_Write(t *testing.T) {
	data := testData{Name: "gzip", Value: 7}
	out, err := Bytes[testData](NewGzipWriter[testData](), data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r, err := gzip.NewReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("not gzip: %v", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded testData
	if err := json.Unmarshal(plain, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != data {
		t.Errorf("got %+v, want %+v", decoded, data)
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format    string
		extension string
		wantErr   bool
	}{
		{"", ".json", false},
		{"JSON", ".json", false},
		{"gzip", ".json.gz", false},
		{"yml", ".yaml", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		w, err := ForFormat[testData](tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForFormat(%q): expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForFormat(%q) failed: %v", tt.format, err)
		}
		if w.Extension() != tt.extension {
			t.Errorf("ForFormat(%q) extension = %s, want %s", tt.format, w.Extension(), tt.extension)
		}
	}
}

func TestWriteToFile(t *testing.T) {
	data := testData{Name: "report", Value: 3}
	path := filepath.Join(t.TempDir(), "nested", "report.yaml")

	w, err := ForPath[testData](path)
	if err != nil {
		t.Fatalf("ForPath failed: %v", err)
	}
	if err := WriteToFile(w, data, path); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded testData
	if err := yaml.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != data {
		t.Errorf("got %+v, want %+v", decoded, data)
	}
}
