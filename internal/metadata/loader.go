package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a metadata file. JSON documents are read
// with the same decoder since YAML is a superset of JSON.
type Document struct {
	Classes []*ClassMetadata `yaml:"classes" json:"classes"`
}

// Parse decodes one metadata document.
func Parse(content []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &doc, nil
}

// LoadFile reads one metadata document from disk.
func LoadFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file %s: %w", path, err)
	}
	doc, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadRegistry merges the classes of all files into one registry.
func LoadRegistry(paths ...string) (*Registry, error) {
	var classes []*ClassMetadata
	for _, path := range paths {
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		classes = append(classes, doc.Classes...)
	}
	return NewRegistry(classes...)
}
