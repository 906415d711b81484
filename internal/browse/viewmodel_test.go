package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedFetcher blocks each call until its gate is released.
type gatedFetcher struct {
	mu    sync.Mutex
	calls []query.Params
	gates []chan fetchResult
	ready chan struct{}
}

type fetchResult struct {
	items []models.CulinaryItem
	err   error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{ready: make(chan struct{}, 16)}
}

func (f *gatedFetcher) List(ctx context.Context, p query.Params) ([]models.CulinaryItem, error) {
	gate := make(chan fetchResult, 1)
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.gates = append(f.gates, gate)
	f.mu.Unlock()
	f.ready <- struct{}{}
	select {
	case r := <-gate:
		return r.items, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *gatedFetcher) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.ready:
		case <-time.After(2 * time.Second):
			t.Fatalf("fetch %d not issued", i+1)
		}
	}
}

// release settles the call issued for kind.
func (f *gatedFetcher) release(t *testing.T, kind models.ItemKind, r fetchResult) {
	t.Helper()
	f.mu.Lock()
	var gate chan fetchResult
	for i, p := range f.calls {
		if p.Kind == kind {
			gate = f.gates[i]
		}
	}
	f.mu.Unlock()
	if gate == nil {
		t.Fatalf("no fetch issued for %s", kind)
	}
	gate <- r
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitStatus(t *testing.T, vm *ViewModel, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for vm.State().Status != want {
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, want %s", vm.State().Status, want)
		}
		time.Sleep(time.Millisecond)
	}
}

// staticFetcher answers immediately.
type staticFetcher struct {
	mu    sync.Mutex
	calls []query.Params
	err   error
}

func (f *staticFetcher) List(_ context.Context, p query.Params) ([]models.CulinaryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	return []models.CulinaryItem{{ID: 1, Kind: p.Kind, Title: p.Search}}, nil
}

func (f *staticFetcher) params() []query.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query.Params(nil), f.calls...)
}

func TestStaleResponseDiscarded(t *testing.T) {
	f := newGatedFetcher()
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{})
	defer vm.Close()

	vm.Dispatch(SetItemKind{Kind: models.KindDrink})
	vm.Dispatch(SetItemKind{Kind: models.KindSauce})
	f.waitCalls(t, 2)

	// Newer response lands first, then the superseded one.
	f.release(t, models.KindSauce, fetchResult{items: []models.CulinaryItem{{ID: 2, Kind: models.KindSauce}}})
	waitStatus(t, vm, StatusReady)
	f.release(t, models.KindDrink, fetchResult{items: []models.CulinaryItem{{ID: 1, Kind: models.KindDrink}}})
	vm.Wait()

	s := vm.State()
	if s.Status != StatusReady || len(s.Items) != 1 || s.Items[0].Kind != models.KindSauce {
		t.Fatalf("state = %+v, want sauce items", s)
	}
}

func TestSearchDebounced(t *testing.T) {
	f := &staticFetcher{}
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{Debounce: 40 * time.Millisecond})
	defer vm.Close()

	for _, text := range []string{"s", "so", "sou", "soup"} {
		vm.Dispatch(SetSearchText{Text: text})
	}
	if got := len(f.params()); got != 0 {
		t.Fatalf("fetched %d times before quiet period", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(f.params()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	vm.Wait()
	calls := f.params()
	if len(calls) != 1 || calls[0].Search != "soup" {
		t.Fatalf("calls = %+v, want one fetch for soup", calls)
	}
	if s := vm.State(); s.Status != StatusReady {
		t.Errorf("status = %s", s.Status)
	}
}

func TestFlushIssuesPendingSearch(t *testing.T) {
	f := &staticFetcher{}
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{Debounce: time.Hour})
	defer vm.Close()

	vm.Dispatch(SetSearchText{Text: "stew"})
	if !vm.Flush() {
		t.Fatal("Flush reported nothing pending")
	}
	vm.Wait()
	if calls := f.params(); len(calls) != 1 || calls[0].Search != "stew" {
		t.Fatalf("calls = %+v", calls)
	}
	if vm.Flush() {
		t.Error("second Flush should find nothing pending")
	}
}

func TestNonSearchActionCancelsDebounce(t *testing.T) {
	f := &staticFetcher{}
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{Debounce: time.Hour})
	defer vm.Close()

	vm.Dispatch(SetSearchText{Text: "taco"})
	vm.Dispatch(SetSortKey{Sort: models.SortNewest})
	vm.Wait()
	calls := f.params()
	if len(calls) != 1 || calls[0].Search != "taco" || calls[0].Sort != models.SortNewest {
		t.Fatalf("calls = %+v", calls)
	}
	if vm.Flush() {
		t.Error("debounce still pending")
	}
}

func TestViewModeDoesNotFetch(t *testing.T) {
	f := &staticFetcher{}
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{})
	defer vm.Close()

	vm.Dispatch(SetViewMode{Mode: models.ViewList})
	vm.Wait()
	if n := len(f.params()); n != 0 {
		t.Errorf("fetches = %d, want 0", n)
	}
}

func TestAuthFailureCallsOnAuthRequired(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", fmt.Errorf("catalog: list recipes: %w", apperr.ErrUnauthorized)},
		{"marker", errors.New("JWT expired")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu    sync.Mutex
				fired error
			)
			f := &staticFetcher{err: tt.err}
			vm := New(context.Background(), f, Initial(models.KindRecipe), Options{
				OnAuthRequired: func(err error) {
					mu.Lock()
					fired = err
					mu.Unlock()
				},
			})
			defer vm.Close()

			vm.Refresh()
			vm.Wait()
			mu.Lock()
			defer mu.Unlock()
			if fired == nil {
				t.Fatal("OnAuthRequired not called")
			}
			if s := vm.State(); s.Status != StatusUnauthenticated {
				t.Errorf("status = %s", s.Status)
			}
		})
	}
}

func TestQueryFailureIsError(t *testing.T) {
	called := false
	f := &staticFetcher{err: errors.New("connection refused")}
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{
		OnAuthRequired: func(error) { called = true },
	})
	defer vm.Close()

	vm.Refresh()
	vm.Wait()
	s := vm.State()
	if s.Status != StatusError || s.Err != "connection refused" {
		t.Errorf("state = %+v", s)
	}
	if called {
		t.Error("OnAuthRequired called for a plain failure")
	}
	if n := len(f.params()); n != 1 {
		t.Errorf("fetches = %d, want exactly one (no retry)", n)
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	f := newGatedFetcher()
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{})
	vm.Refresh()
	f.waitCalls(t, 1)
	vm.Close()

	if f.callCount() != 1 {
		t.Errorf("calls = %d", f.callCount())
	}
	vm.Dispatch(SetItemKind{Kind: models.KindDrink})
	if f.callCount() != 1 {
		t.Error("dispatch after Close issued a fetch")
	}
}

func TestOnChangeObservesTransitions(t *testing.T) {
	var (
		mu       sync.Mutex
		statuses []Status
	)
	f := newGatedFetcher()
	vm := New(context.Background(), f, Initial(models.KindRecipe), Options{
		OnChange: func(s State) {
			mu.Lock()
			statuses = append(statuses, s.Status)
			mu.Unlock()
		},
	})
	defer vm.Close()

	vm.Dispatch(SetItemKind{Kind: models.KindSide})
	f.waitCalls(t, 1)
	f.release(t, models.KindSide, fetchResult{items: []models.CulinaryItem{{ID: 9}}})
	vm.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || statuses[0] != StatusLoading || statuses[1] != StatusReady {
		t.Errorf("statuses = %v", statuses)
	}
}

// instantFetcher settles every call immediately.
type instantFetcher struct{}

func (instantFetcher) List(context.Context, query.Params) ([]models.CulinaryItem, error) {
	return []models.CulinaryItem{{ID: 1}}, nil
}

func TestOnChangeNeverRegresses(t *testing.T) {
	for i := 0; i < 200; i++ {
		var (
			mu   sync.Mutex
			last Status
		)
		vm := New(context.Background(), instantFetcher{}, Initial(models.KindRecipe), Options{
			OnChange: func(s State) {
				mu.Lock()
				last = s.Status
				mu.Unlock()
			},
		})
		vm.Dispatch(SetItemKind{Kind: models.KindDrink})
		vm.Wait()
		vm.Close()

		mu.Lock()
		got := last
		mu.Unlock()
		if got != StatusReady {
			t.Fatalf("run %d: last delivered status = %s, want %s", i, got, StatusReady)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	if IsAuthError(nil) || IsAuthError(errors.New("timeout")) {
		t.Error("false positive")
	}
	if !IsAuthError(errors.New("invalid Jwt signature")) {
		t.Error("marker not detected")
	}
}
