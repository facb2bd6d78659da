package validate

import (
	"context"
	"sync"
	"time"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
)

// DefaultDebounce is the quiet period before a uniqueness check fires.
const DefaultDebounce = 500 * time.Millisecond

// ExistsFunc reports whether value is already taken on the server.
type ExistsFunc func(ctx context.Context, value string) (bool, error)

type editModeKey struct{}

// EditMode marks ctx as validating a record that already exists. Unique
// skips the remote check in that case.
func EditMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, editModeKey{}, true)
}

// IsEditMode reports whether ctx was marked by EditMode.
func IsEditMode(ctx context.Context) bool {
	v, _ := ctx.Value(editModeKey{}).(bool)
	return v
}

// Unique is a debounced remote uniqueness check. It holds at most one
// pending check: each call supersedes the previous one, which resolves as
// passing at once. The remote check runs only after Debounce elapses
// without a newer call.
type Unique struct {
	Field    string
	Exists   ExistsFunc
	Debounce time.Duration
	Message  string

	mu      sync.Mutex
	pending *pendingCheck
}

type pendingCheck struct {
	timer *time.Timer
	once  sync.Once
	done  chan error
}

func (p *pendingCheck) resolve(err error) {
	p.once.Do(func() {
		p.done <- err
	})
}

// NewUnique returns a uniqueness validator for field.
func NewUnique(field string, exists ExistsFunc, debounce time.Duration) *Unique {
	return &Unique{Field: field, Exists: exists, Debounce: debounce}
}

// Validate blocks until the check for value resolves, is superseded or
// ctx is done.
func (u *Unique) Validate(ctx context.Context, value string) error {
	u.mu.Lock()
	u.supersede()
	if IsEditMode(ctx) || IsBlank(value) {
		u.mu.Unlock()
		return nil
	}

	p := &pendingCheck{done: make(chan error, 1)}
	u.pending = p
	p.timer = time.AfterFunc(u.debounce(), func() {
		u.fire(ctx, p, value)
	})
	u.mu.Unlock()

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		u.mu.Lock()
		if u.pending == p {
			p.timer.Stop()
			u.pending = nil
		}
		u.mu.Unlock()
		return ctx.Err()
	}
}

// supersede stops the pending check and resolves its caller as passing.
// u.mu must be held.
func (u *Unique) supersede() {
	if old := u.pending; old != nil {
		old.timer.Stop()
		old.resolve(nil)
		u.pending = nil
	}
}

func (u *Unique) debounce() time.Duration {
	if u.Debounce <= 0 {
		return DefaultDebounce
	}
	return u.Debounce
}

func (u *Unique) fire(ctx context.Context, p *pendingCheck, value string) {
	u.mu.Lock()
	current := u.pending == p
	u.mu.Unlock()
	if !current {
		return
	}

	taken, err := u.Exists(ctx, value)

	u.mu.Lock()
	if u.pending == p {
		u.pending = nil
	}
	u.mu.Unlock()

	switch {
	case err != nil:
		metrics.RecordUniqueCheck("error")
		logging.Warn("uniqueness check failed",
			logging.String("field", u.Field),
			logging.Err(err),
		)
		p.resolve(&RuleError{Rule: "unique", Message: "could not verify " + u.label() + " is unique", Err: err})
	case taken:
		metrics.RecordUniqueCheck("taken")
		p.resolve(&RuleError{Rule: "unique", Message: u.message()})
	default:
		metrics.RecordUniqueCheck("free")
		p.resolve(nil)
	}
}

func (u *Unique) label() string {
	if u.Field == "" {
		return "value"
	}
	return u.Field
}

func (u *Unique) message() string {
	if u.Message != "" {
		return u.Message
	}
	return u.label() + " already exists"
}
