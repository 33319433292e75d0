package filter

import (
	"sync"
	"testing"
)

func TestNamespaceFilter_Classify(t *testing.T) {
	f := NewNamespaceFilter(`Vendor\Legacy`)

	tests := []struct {
		className string
		expected  ClassCategory
	}{
		{``, CategoryUnknown},
		{`Weaver\Aop\Pointcut`, CategoryInfrastructure},
		{`\Weaver\Reflection\ClassSchema`, CategoryInfrastructure},
		{`Weaver\Persistence\Mapping\Driver`, CategoryInfrastructure},
		{`Weaver\Persistence\Repository`, CategoryApplication},
		{`Weaver\AopExtra\Thing`, CategoryApplication},
		{`Vendor\Legacy\Mailer`, CategoryExcluded},
		{`Vendor\LegacyTools\Mailer`, CategoryApplication},
		{`App\Service\OrderService`, CategoryApplication},
	}

	for _, tt := range tests {
		t.Run(tt.className, func(t *testing.T) {
			if got := f.Classify(tt.className); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.className, got, tt.expected)
			}
		})
	}
}

func TestNamespaceFilter_IsAdvisable(t *testing.T) {
	f := NewNamespaceFilter()
	if f.IsAdvisable(`Weaver\Core\Bootstrap`) {
		t.Error("infrastructure class must not be advisable")
	}
	if !f.IsAdvisable(`App\Controller`) {
		t.Error("application class must be advisable")
	}
	if !IsAdvisable(`App\Controller`) {
		t.Error("default filter must accept application classes")
	}
}

func TestNamespaceFilter_AddExcludedClearsCache(t *testing.T) {
	f := NewNamespaceFilter()
	if f.Classify(`Acme\Tool`) != CategoryApplication {
		t.Fatal("expected application before exclusion")
	}
	f.AddExcludedNamespaces([]string{`Acme\`, `Acme`, ``})
	if f.Classify(`Acme\Tool`) != CategoryExcluded {
		t.Error("expected excluded after exclusion")
	}
	if got := f.ExcludedNamespaces(); len(got) != 1 || got[0] != `Acme` {
		t.Errorf("ExcludedNamespaces() = %v", got)
	}
}

func TestNamespaceFilter_Concurrency(t *testing.T) {
	f := NewNamespaceFilter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Classify(`App\Service`)
			f.Classify(`Weaver\Cache\Frontend`)
		}()
	}
	wg.Wait()

	size, maxSize := f.CacheStats()
	if size != 2 || maxSize != 10000 {
		t.Errorf("CacheStats() = %d, %d", size, maxSize)
	}
}

func TestClassCategory_String(t *testing.T) {
	if CategoryInfrastructure.String() != "infrastructure" || ClassCategory(42).String() != "unknown" {
		t.Error("unexpected category names")
	}
}
