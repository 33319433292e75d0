// Package testutil provides class universes and helpers for testing.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aop-weaver/internal/metadata"
)

// Class names of the shop universe.
const (
	Loggable       = `App\Contract\Loggable`
	Traceable      = `App\Contract\Traceable`
	BaseService    = `App\Service\BaseService`
	UserService    = `App\Service\UserService`
	ReportService  = `App\Service\ReportService`
	HomeController = `App\Controller\HomeController`
	Bootstrap      = `Weaver\Core\Bootstrap`
	LoggingAspect  = `App\Aspect\LoggingAspect`
	CachedMarker   = `App\Annotation\Cached`
)

// Ann builds an annotation from key/value pairs.
func Ann(annotationType string, kv ...string) metadata.Annotation {
	values := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return metadata.Annotation{Type: annotationType, Values: values}
}

// Advice declares an aspect method carrying one advice annotation, e.g.
// Advice("aop.Before", "logSave", "method(App\\Service\\*->save())").
func Advice(annotationType, methodName, pointcut string) metadata.MethodMetadata {
	return metadata.MethodMetadata{
		Name:        methodName,
		Annotations: []metadata.Annotation{Ann(annotationType, "pointcut", pointcut)},
	}
}

// Aspect declares an aspect class.
func Aspect(className string, methods ...metadata.MethodMetadata) *metadata.ClassMetadata {
	return &metadata.ClassMetadata{
		Name:        className,
		Annotations: []metadata.Annotation{Ann("aop.Aspect")},
		Methods:     methods,
	}
}

// Introduce declares an aspect introducing an interface.
func Introduce(className, interfaceName, pointcut string, methods ...metadata.MethodMetadata) *metadata.ClassMetadata {
	a := Aspect(className, methods...)
	a.Annotations = append(a.Annotations, Ann("aop.Introduce", "interface", interfaceName, "pointcut", pointcut))
	return a
}

// ShopClasses returns the target classes of the shop universe: a service
// hierarchy with final and static methods, a final class, a controller and
// an infrastructure class.
func ShopClasses() []*metadata.ClassMetadata {
	return []*metadata.ClassMetadata{
		{
			Name:    Loggable,
			Kind:    metadata.KindInterface,
			Methods: []metadata.MethodMetadata{{Name: "log", Parameters: []metadata.Parameter{{Name: "message"}}}},
		},
		{
			Name:    Traceable,
			Kind:    metadata.KindInterface,
			Methods: []metadata.MethodMetadata{{Name: "log"}, {Name: "trace"}},
		},
		{
			Name: BaseService,
			Methods: []metadata.MethodMetadata{
				{Name: "save", Parameters: []metadata.Parameter{{Name: "entity"}}},
				{Name: "finalize", Final: true},
				{Name: "create", Static: true},
			},
		},
		{
			Name:   UserService,
			Parent: BaseService,
			Methods: []metadata.MethodMetadata{
				{Name: "__construct", Constructor: true, Parameters: []metadata.Parameter{{Name: "repository"}}},
				{Name: "find", Parameters: []metadata.Parameter{{Name: "id"}}, Annotations: []metadata.Annotation{Ann(CachedMarker)}},
				{Name: "withdraw", Parameters: []metadata.Parameter{{Name: "amount"}}},
			},
		},
		{
			Name:    ReportService,
			Final:   true,
			Methods: []metadata.MethodMetadata{{Name: "render"}},
		},
		{
			Name:    HomeController,
			Methods: []metadata.MethodMetadata{{Name: "index"}},
		},
		{
			Name:    Bootstrap,
			Methods: []metadata.MethodMetadata{{Name: "run"}},
		},
	}
}

// ShopLoggingAspect advises the services of the shop universe with every
// advice kind and one runtime condition.
func ShopLoggingAspect() *metadata.ClassMetadata {
	return Aspect(LoggingAspect,
		metadata.MethodMetadata{
			Name:        "services",
			Annotations: []metadata.Annotation{Ann("aop.Pointcut", "expression", `class(App\Service\*)`)},
		},
		Advice("aop.Before", "beforeSave", `method(App\Service\*->save())`),
		Advice("aop.Around", "aroundServices", LoggingAspect+`->services`),
		Advice("aop.AfterReturning", "cacheResult", `methodAnnotatedWith(`+CachedMarker+`)`),
		Advice("aop.After", "afterFind", `method(App\Service\UserService->find())`),
		Advice("aop.AfterThrowing", "largeWithdrawalFailed", `method(App\Service\UserService->withdraw(amount > 100))`),
	)
}

// NewRegistry builds a metadata registry from classes.
func NewRegistry(t *testing.T, classes ...*metadata.ClassMetadata) *metadata.Registry {
	t.Helper()
	r, err := metadata.NewRegistry(classes...)
	require.NoError(t, err)
	return r
}

// NewShopRegistry builds the shop universe plus the given aspects.
func NewShopRegistry(t *testing.T, aspects ...*metadata.ClassMetadata) *metadata.Registry {
	t.Helper()
	return NewRegistry(t, append(ShopClasses(), aspects...)...)
}

// WriteMetadata writes the classes as a metadata document below dir and
// returns its path.
func WriteMetadata(t *testing.T, dir, filename string, classes ...*metadata.ClassMetadata) string {
	t.Helper()
	content, err := yaml.Marshal(&metadata.Document{Classes: classes})
	require.NoError(t, err)
	return WriteFile(t, dir, filename, string(content))
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// ReadFile reads a file and returns its contents.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}
