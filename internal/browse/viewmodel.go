package browse

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

// DefaultDebounce is the quiet period after a search edit before fetching.
const DefaultDebounce = 300 * time.Millisecond

// Fetcher runs a catalog query. catalog.Service satisfies it.
type Fetcher interface {
	List(ctx context.Context, p query.Params) ([]models.CulinaryItem, error)
}

// Options configures a ViewModel. Callbacks run outside the ViewModel's lock
// and may be invoked from fetch goroutines. OnChange calls are serialized and
// never deliver a state older than one already delivered, so an observer may
// skip intermediate states; it must not call back into the ViewModel.
type Options struct {
	Debounce       time.Duration
	OnChange       func(State)
	OnAuthRequired func(error)
	Logger         *slog.Logger
}

// ViewModel drives a browsing session: it reduces actions, debounces search
// text and applies fetch results. Responses are tagged with a sequence number
// at issue time; one older than the newest applied response is dropped.
type ViewModel struct {
	fetch Fetcher
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	issued  uint64
	applied uint64
	timer   *time.Timer
	pending bool
	closed  bool
	version uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a ViewModel starting at initial. No fetch is issued until
// Refresh or the first refetching action.
func New(ctx context.Context, f Fetcher, initial State, opts Options) *ViewModel {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &ViewModel{fetch: f, opts: opts, ctx: ctx, cancel: cancel, state: initial}
}

// State returns the current state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// Dispatch applies a and schedules a fetch when the refetch key changed.
// Search edits wait for the debounce period; everything else fetches now.
func (vm *ViewModel) Dispatch(a Action) State {
	vm.mu.Lock()
	if vm.closed {
		s := vm.state
		vm.mu.Unlock()
		return s
	}
	next, refetch := Reduce(vm.state, a)
	vm.state = next
	if refetch {
		if _, ok := a.(SetSearchText); ok && vm.opts.Debounce > 0 {
			vm.schedule()
		} else {
			vm.stopTimer()
			vm.issue()
		}
	}
	s, ver := vm.snapshot()
	vm.mu.Unlock()

	vm.changed(s, ver)
	return s
}

// Refresh fetches the current key immediately.
func (vm *ViewModel) Refresh() {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.stopTimer()
	vm.state.Status = StatusLoading
	vm.issue()
	s, ver := vm.snapshot()
	vm.mu.Unlock()
	vm.changed(s, ver)
}

// Flush issues a pending debounced search now. It reports whether one was pending.
func (vm *ViewModel) Flush() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed || !vm.pending {
		return false
	}
	vm.stopTimer()
	vm.issue()
	return true
}

// Wait blocks until every issued fetch has settled. A pending debounce is not
// waited for, so call Flush first. Wait must not run concurrently with
// Dispatch, Refresh, Flush or an armed debounce timer, any of which may start
// a new fetch while Wait is blocked.
func (vm *ViewModel) Wait() {
	vm.wg.Wait()
}

// Close stops the debounce timer, cancels in-flight fetches and waits for them.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.closed = true
	vm.stopTimer()
	vm.mu.Unlock()
	vm.cancel()
	vm.wg.Wait()
}

// schedule (re)arms the debounce timer. Caller holds mu.
func (vm *ViewModel) schedule() {
	vm.stopTimer()
	vm.pending = true
	vm.timer = time.AfterFunc(vm.opts.Debounce, vm.fire)
}

// stopTimer disarms the debounce timer. Caller holds mu.
func (vm *ViewModel) stopTimer() {
	if vm.timer != nil {
		vm.timer.Stop()
		vm.timer = nil
	}
	vm.pending = false
}

func (vm *ViewModel) fire() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed || !vm.pending {
		return
	}
	vm.pending = false
	vm.timer = nil
	vm.issue()
}

// issue starts a fetch for the current key. Caller holds mu.
func (vm *ViewModel) issue() {
	vm.issued++
	seq := vm.issued
	params := vm.state.Params()
	vm.wg.Add(1)
	go func() {
		defer vm.wg.Done()
		items, err := vm.fetch.List(vm.ctx, params)
		vm.settle(seq, items, err)
	}()
}

func (vm *ViewModel) settle(seq uint64, items []models.CulinaryItem, err error) {
	vm.mu.Lock()
	if vm.closed || seq < vm.applied {
		vm.mu.Unlock()
		vm.opts.Logger.Debug("browse: dropped stale response", slog.Uint64("seq", seq))
		return
	}
	vm.applied = seq

	var (
		action Action = Loaded{Items: items}
		auth   bool
	)
	if err != nil {
		auth = IsAuthError(err)
		action = Failed{Err: err, Auth: auth}
	}
	vm.state, _ = Reduce(vm.state, action)
	s, ver := vm.snapshot()
	vm.mu.Unlock()

	if err != nil {
		if auth {
			if vm.opts.OnAuthRequired != nil {
				vm.opts.OnAuthRequired(err)
			}
		} else {
			vm.opts.Logger.Error("browse: fetch failed", slog.String("kind", string(s.Kind)), slog.String("error", err.Error()))
		}
	}
	vm.changed(s, ver)
}

// snapshot returns the state tagged with a new change version. Caller holds mu.
func (vm *ViewModel) snapshot() (State, uint64) {
	vm.version++
	return vm.state, vm.version
}

func (vm *ViewModel) changed(s State, ver uint64) {
	if vm.opts.OnChange == nil {
		return
	}
	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()
	if ver <= vm.delivered {
		return
	}
	vm.delivered = ver
	vm.opts.OnChange(s)
}

// IsAuthError reports whether err means the session was rejected: either the
// store said so or the message carries the session-token marker.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrUnauthorized) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "jwt")
}
