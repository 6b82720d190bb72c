package genai

import (
	"errors"
	"sync"
	"testing"
)

func TestRouterCachesPerModelKey(t *testing.T) {
	built := 0
	router := NewRouter(func(modelKey string) (Processor, error) {
		built++
		return &scriptedProcessor{}, nil
	})

	first, err := router.Resolve("fast-model")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := router.Resolve("fast-model")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != second {
		t.Error("second resolve returned a different processor")
	}
	if built != 1 {
		t.Errorf("factory ran %d times, want 1", built)
	}

	if _, err := router.Resolve("careful-model"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if built != 2 {
		t.Errorf("factory ran %d times, want 2", built)
	}
}

func TestRouterRejectsEmptyModelKey(t *testing.T) {
	router := NewRouter(func(modelKey string) (Processor, error) {
		return &scriptedProcessor{}, nil
	})
	if _, err := router.Resolve(""); err == nil {
		t.Fatal("Resolve accepted an empty model key")
	}
}

func TestRouterPropagatesFactoryError(t *testing.T) {
	factoryErr := errors.New("unknown model")
	router := NewRouter(func(modelKey string) (Processor, error) {
		return nil, factoryErr
	})
	if _, err := router.Resolve("missing"); !errors.Is(err, factoryErr) {
		t.Fatalf("Resolve error = %v, want wrapped factory error", err)
	}
}

func TestRouterConcurrentResolve(t *testing.T) {
	var mu sync.Mutex
	built := 0
	router := NewRouter(func(modelKey string) (Processor, error) {
		mu.Lock()
		built++
		mu.Unlock()
		return &scriptedProcessor{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := router.Resolve("shared-model"); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if built != 1 {
		t.Errorf("factory ran %d times, want 1", built)
	}
}
