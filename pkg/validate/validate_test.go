package validate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmake-zxb/jk-ui/pkg/models"
)

func TestRules(t *testing.T) {
	tests := []struct {
		rule  string
		value string
		ok    bool
	}{
		{"mobilePhone", "", true},
		{"mobilePhone", "null", true},
		{"mobilePhone", "undefined", true},
		{"mobilePhone", "123", false},
		{"mobilePhone", "13800000000", true},
		{"mobilePhone", "12800000000", false},
		{"number", "-12.5", true},
		{"number", "1e5", false},
		{"letter", "abcXYZ", true},
		{"letter", "ab1", false},
		{"letterAndNumber", "ab12", true},
		{"letterAndNumber", "ab_12", false},
		{"letterStartNumberIncluded", "a123", true},
		{"letterStartNumberIncluded", "1abc", false},
		{"noChinese", "hello", true},
		{"noChinese", "你好", false},
		{"chinese", "你好", true},
		{"chinese", "hi你好", false},
		{"email", "dev.ops@example.com", true},
		{"email", "dev@example.info", false},
		{"url", "https://example.com/a?b=c", true},
		{"url", "example.com", false},
		{"nameCn", "管理员_admin1", true},
		{"nameCn", "admin role", false},
		{"capital", "ROLE_ADMIN", true},
		{"capital", "Role", false},
		{"lowercaseUnderscore", "dict_type", true},
		{"lowercaseUnderscore", "dictType", false},
		{"lower", "abc", true},
		{"lower", "ab_c", false},
		{"phone", "13912345678", true},
		{"phone", "14012345678", false},
		{"phone", "139****5678", true},
		{"phone", "", true},
		{"overLength", strings.Repeat("a", 255), true},
		{"overLength", strings.Repeat("a", 256), false},
		{"overLength", strings.Repeat("中", 255), true},
		{"noBlank", "", false},
		{"noBlank", "   ", false},
		{"noBlank", "text ", false},
		{"noBlank", " text", true},
	}
	for _, tt := range tests {
		r, ok := Lookup(tt.rule)
		if !ok {
			t.Fatalf("rule %s not registered", tt.rule)
		}
		err := r.Validate(context.Background(), tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("%s(%q) = %v, want ok=%v", tt.rule, tt.value, err, tt.ok)
		}
		if err != nil {
			var re *RuleError
			if !errors.As(err, &re) || re.Rule != tt.rule {
				t.Errorf("%s(%q) returned %T %v", tt.rule, tt.value, err, err)
			}
		}
	}
}

func TestRegexp(t *testing.T) {
	r, err := Regexp(`^\d{6}$`, "six digits")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Validate(context.Background(), ""); err != nil {
		t.Errorf("blank should pass: %v", err)
	}
	if err := r.Validate(context.Background(), "12345"); err == nil || err.Error() != "six digits" {
		t.Errorf("expected six digits error, got %v", err)
	}
	if _, err := Regexp(`(`, ""); err == nil {
		t.Error("expected compile error")
	}
}

func TestAllAndWithMessage(t *testing.T) {
	lower, _ := Lookup("lower")
	over, _ := Lookup("overLength")
	v := All(lower.WithMessage("lower only"), over)
	if err := v.Validate(context.Background(), "ABC"); err == nil || err.Error() != "lower only" {
		t.Errorf("got %v", err)
	}
	if lower.Message == "lower only" {
		t.Error("WithMessage must not modify the shared rule")
	}
}

func TestEngineStruct(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}

	good := models.UserForm{
		Username: "admin01",
		Name:     "Admin",
		Phone:    "13800000000",
		DeptID:   "1",
		Role:     []string{"1"},
	}
	if err := e.Struct(good); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	bad := good
	bad.Username = "admin 01"
	bad.Phone = "123"
	bad.Email = "nope"
	bad.LockFlag = "5"
	err = e.Struct(bad)
	var fes FieldErrors
	if !errors.As(err, &fes) {
		t.Fatalf("expected FieldErrors, got %T %v", err, err)
	}
	got := map[string]string{}
	for _, fe := range fes {
		got[fe.Field] = fe.Rule
	}
	want := map[string]string{
		"username": "letterAndNumber",
		"phone":    "mobilePhone",
		"email":    "email",
		"lockFlag": "oneof",
	}
	for f, rule := range want {
		if got[f] != rule {
			t.Errorf("field %s: rule %q, want %q (all: %v)", f, got[f], rule, got)
		}
	}
}

func TestEngineRoleAndDict(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Struct(models.RoleForm{RoleName: "管理员", RoleCode: "ROLE_ADMIN"}); err != nil {
		t.Errorf("role: %v", err)
	}
	if err := e.Struct(models.RoleForm{RoleName: "admin", RoleCode: "role_admin"}); err == nil {
		t.Error("expected capital failure")
	}
	if err := e.Struct(models.DictForm{DictType: "sys_flag", Description: "flags"}); err != nil {
		t.Errorf("dict: %v", err)
	}
	if err := e.Var("13800000000", "required,mobilePhone"); err != nil {
		t.Errorf("Var: %v", err)
	}
	if err := e.Var("", "required,mobilePhone"); err == nil {
		t.Error("expected required failure")
	}
}

// waitPending blocks until u holds a pending check other than prev.
func waitPending(t *testing.T, u *Unique, prev *pendingCheck) *pendingCheck {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		u.mu.Lock()
		p := u.pending
		u.mu.Unlock()
		if p != nil && p != prev {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for pending check")
	return nil
}

func TestUniqueDebounce(t *testing.T) {
	var calls atomic.Int32
	var checked atomic.Value
	u := NewUnique("roleName", func(ctx context.Context, value string) (bool, error) {
		calls.Add(1)
		checked.Store(value)
		return value == "taken", nil
	}, 50*time.Millisecond)

	results := make([]error, 3)
	var wg sync.WaitGroup
	var prev *pendingCheck
	for i, v := range []string{"a", "ab", "taken"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = u.Validate(context.Background(), v)
		}()
		prev = waitPending(t, u, prev)
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("remote checks = %d, want 1", n)
	}
	if v := checked.Load(); v != "taken" {
		t.Errorf("checked %v, want the latest value", v)
	}
	if results[0] != nil || results[1] != nil {
		t.Errorf("superseded calls should pass: %v, %v", results[0], results[1])
	}
	var re *RuleError
	if !errors.As(results[2], &re) || re.Rule != "unique" {
		t.Errorf("latest call = %v", results[2])
	}
}

func TestUniqueBlankAndEditModeSupersede(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		next string
	}{
		{"blank value", context.Background(), ""},
		{"edit mode", EditMode(context.Background()), "taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			u := NewUnique("roleName", func(ctx context.Context, value string) (bool, error) {
				calls.Add(1)
				return true, nil
			}, 50*time.Millisecond)

			stale := make(chan error, 1)
			go func() {
				stale <- u.Validate(context.Background(), "taken")
			}()
			waitPending(t, u, nil)

			if err := u.Validate(tt.ctx, tt.next); err != nil {
				t.Fatalf("superseding call = %v", err)
			}
			select {
			case err := <-stale:
				if err != nil {
					t.Errorf("superseded call = %v, want pass", err)
				}
			case <-time.After(time.Second):
				t.Fatal("superseded call never resolved")
			}

			time.Sleep(100 * time.Millisecond)
			if n := calls.Load(); n != 0 {
				t.Errorf("remote checks = %d, want 0", n)
			}
			u.mu.Lock()
			defer u.mu.Unlock()
			if u.pending != nil {
				t.Error("pending check left behind")
			}
		})
	}
}

func TestUniqueRemoteErrorFails(t *testing.T) {
	boom := errors.New("503")
	u := NewUnique("dictType", func(ctx context.Context, value string) (bool, error) {
		return false, boom
	}, time.Millisecond)
	err := u.Validate(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped remote error, got %v", err)
	}
}

func TestUniqueFree(t *testing.T) {
	u := NewUnique("", func(ctx context.Context, value string) (bool, error) {
		return false, nil
	}, time.Millisecond)
	if err := u.Validate(context.Background(), "free"); err != nil {
		t.Errorf("got %v", err)
	}
}

func TestUniqueEditModeBypass(t *testing.T) {
	var calls atomic.Int32
	u := NewUnique("roleCode", func(ctx context.Context, value string) (bool, error) {
		calls.Add(1)
		return true, nil
	}, time.Millisecond)
	if err := u.Validate(EditMode(context.Background()), "ROLE_ADMIN"); err != nil {
		t.Errorf("edit mode should pass, got %v", err)
	}
	if err := u.Validate(context.Background(), ""); err != nil {
		t.Errorf("blank should pass, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("remote checks = %d, want 0", calls.Load())
	}
}

func TestUniqueContextCancel(t *testing.T) {
	u := NewUnique("x", func(ctx context.Context, value string) (bool, error) {
		t.Error("check should not run")
		return false, nil
	}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitPending(t, u, nil)
		cancel()
	}()
	if err := u.Validate(ctx, "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}
