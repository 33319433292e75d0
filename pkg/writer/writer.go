// Package writer encodes weaving reports as JSON, gzipped JSON or YAML.
package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Writer encodes values of type T.
type Writer[T any] interface {
	Write(data T, w io.Writer) error
	// Extension is the file suffix including the dot.
	Extension() string
}

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent is empty for compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// Extension implements Writer.
func (w *JSONWriter[T]) Extension() string { return ".json" }

// GzipWriter writes data as gzipped JSON.
type GzipWriter[T any] struct {
	CompressionLevel int
}

// NewGzipWriter creates a new gzip writer with default compression.
func NewGzipWriter[T any]() *GzipWriter[T] {
	return &GzipWriter[T]{CompressionLevel: gzip.DefaultCompression}
}

// Write writes the data as gzipped JSON to the writer.
func (w *GzipWriter[T]) Write(data T, writer io.Writer) error {
	gzWriter, err := gzip.NewWriterLevel(writer, w.CompressionLevel)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return gzWriter.Close()
}

// Extension implements Writer.
func (w *GzipWriter[T]) Extension() string { return ".json.gz" }

// YAMLWriter writes data as YAML.
type YAMLWriter[T any] struct {
	Indent int
}

// NewYAMLWriter creates a YAML writer with two-space indentation.
func NewYAMLWriter[T any]() *YAMLWriter[T] {
	return &YAMLWriter[T]{Indent: 2}
}

// Write writes the data as YAML to the writer.
func (w *YAMLWriter[T]) Write(data T, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(w.Indent)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return encoder.Close()
}

// Extension implements Writer.
func (w *YAMLWriter[T]) Extension() string { return ".yaml" }

// ForFormat returns the writer for "json", "json.gz"/"gzip" or "yaml".
func ForFormat[T any](format string) (Writer[T], error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewPrettyJSONWriter[T](), nil
	case "json.gz", "gzip":
		return NewGzipWriter[T](), nil
	case "yaml", "yml":
		return NewYAMLWriter[T](), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// ForPath picks the writer from a file name's suffix.
func ForPath[T any](path string) (Writer[T], error) {
	switch {
	case strings.HasSuffix(path, ".json.gz"), strings.HasSuffix(path, ".gz"):
		return NewGzipWriter[T](), nil
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return NewYAMLWriter[T](), nil
	default:
		return NewPrettyJSONWriter[T](), nil
	}
}

// Bytes encodes data in memory.
func Bytes[T any](w Writer[T], data T) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteToFile encodes data into path, creating parent directories.
func WriteToFile[T any](w Writer[T], data T, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := w.Write(data, file); err != nil {
		return err
	}
	return file.Close()
}
