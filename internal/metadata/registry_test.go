package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aop-weaver/pkg/errors"
)

const sampleDocument = `
classes:
  - name: App\Greeter
    kind: interface
    interfaces: [App\Named]
    methods:
      - name: greet
  - name: App\Named
    kind: interface
    methods:
      - name: name
  - name: App\Base
    abstract: true
    interfaces: [App\Greeter]
    annotations:
      - type: App\Entity
        values: {table: base}
    methods:
      - name: greet
        annotations:
          - type: App\Log
      - name: name
      - name: helper
        visibility: protected
        static: true
  - name: \App\Service
    parent: App\Base
    final: false
    methods:
      - name: greet
        parameters:
          - name: who
            type: string
      - name: lock
        final: true
    properties:
      - name: cache
        annotations:
          - type: App\Inject
  - name: App\Special
    parent: App\Service
`

func newSampleRegistry(t *testing.T) *Registry {
	t.Helper()
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)
	r, err := NewRegistry(doc.Classes...)
	require.NoError(t, err)
	return r
}

func TestRegistry_Lookup(t *testing.T) {
	r := newSampleRegistry(t)

	assert.True(t, r.HasClass(`\App\Service`))
	assert.True(t, r.HasClass(`App\Service`))
	assert.False(t, r.HasClass(`App\Missing`))
	assert.True(t, r.IsInterface(`App\Greeter`))
	assert.False(t, r.IsInterface(`App\Service`))
	assert.Equal(t, []string{`App\Base`, `App\Greeter`, `App\Named`, `App\Service`, `App\Special`}, r.ClassNames())

	c, ok := r.Class(`App\Service`)
	require.True(t, ok)
	assert.Equal(t, KindClass, c.Kind)
	assert.Equal(t, `App\Base`, c.Parent)
}

func TestRegistry_MethodsIncludeInherited(t *testing.T) {
	r := newSampleRegistry(t)

	refs := r.Methods(`App\Service`)
	var names, declaring []string
	for _, ref := range refs {
		names = append(names, ref.Method.Name)
		declaring = append(declaring, ref.DeclaringClass)
	}
	assert.Equal(t, []string{"greet", "lock", "name", "helper"}, names)
	assert.Equal(t, []string{`App\Service`, `App\Service`, `App\Base`, `App\Base`}, declaring)

	ref, ok := r.Method(`App\Special`, "helper")
	require.True(t, ok)
	assert.Equal(t, `App\Base`, ref.DeclaringClass)
	assert.True(t, ref.Method.Static)
	assert.True(t, ref.Method.IsProtected())

	ifaceRefs := r.Methods(`App\Greeter`)
	require.Len(t, ifaceRefs, 2)
	assert.Equal(t, `App\Named`, ifaceRefs[1].DeclaringClass)
}

func TestRegistry_Hierarchy(t *testing.T) {
	r := newSampleRegistry(t)

	assert.True(t, r.ImplementsInterface(`App\Special`, `App\Greeter`))
	assert.True(t, r.ImplementsInterface(`App\Special`, `App\Named`))
	assert.False(t, r.ImplementsInterface(`App\Special`, `App\Other`))
	assert.True(t, r.IsSubclassOf(`App\Special`, `App\Base`))
	assert.False(t, r.IsSubclassOf(`App\Base`, `App\Special`))

	assert.Equal(t, []string{`App\Base`, `App\Service`, `App\Special`}, r.ImplementationsOf(`App\Named`))
	assert.Equal(t, []string{`App\Service`, `App\Special`}, r.SubclassesOf(`App\Base`))
}

func TestRegistry_Annotations(t *testing.T) {
	r := newSampleRegistry(t)

	anns := r.ClassAnnotations(`App\Base`, `\App\Entity`)
	require.Len(t, anns, 1)
	assert.Equal(t, "base", anns[0].StringValue("table"))

	assert.Equal(t, []string{`App\Base`}, r.ClassNamesByAnnotation(`App\Entity`))
	// App\Service overrides greet without the annotation; App\Special inherits the override.
	assert.Equal(t, []string{`App\Base`}, r.ClassNamesWithMethodsAnnotatedWith(`App\Log`))
	assert.Len(t, r.MethodAnnotations(`App\Base`, "greet", `App\Log`), 1)
	assert.Empty(t, r.MethodAnnotations(`App\Service`, "greet", `App\Log`))
	assert.Len(t, r.PropertyAnnotations(`App\Service`, "cache", `App\Inject`), 1)
	assert.Nil(t, r.PropertyAnnotations(`App\Missing`, "cache", `App\Inject`))
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&ClassMetadata{Name: `App\A`}, &ClassMetadata{Name: `\App\A`})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))

	_, err = NewRegistry(&ClassMetadata{})
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "classes.yaml")
	jsonPath := filepath.Join(dir, "more.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleDocument), 0644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"classes":[{"name":"App\\Extra","methods":[{"name":"run"}]}]}`), 0644))

	r, err := LoadRegistry(yamlPath, jsonPath)
	require.NoError(t, err)
	assert.True(t, r.HasClass(`App\Extra`))

	_, err = LoadRegistry(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMethodMetadata_Helpers(t *testing.T) {
	m := &MethodMetadata{Name: "save", Parameters: []Parameter{{Name: "entity"}}}
	assert.True(t, m.IsPublic())
	assert.False(t, m.IsProtected())
	assert.True(t, m.HasParameter("entity"))
	assert.False(t, m.HasParameter("other"))
}
