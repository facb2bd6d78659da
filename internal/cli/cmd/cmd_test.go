package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
)

// syncBuffer is written by the notice printer and the commands at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr syncBuffer
	app := NewApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"console", "--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"}, args...)
	err := app.Run(argv)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if err != nil {
		return ExitError
	}
	return 0
}

func writeResult(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.Result[any]{Code: protocol.CodeOK, Data: data})
}

// backend is a fake console API.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	chunks := map[string][]byte{}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "invalid_grant", Msg: "bad credentials", Code: 1})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued-token",
			"token_type":   "bearer",
			"expires_in":   3600,
			"username":     "admin",
		})
	})
	mux.HandleFunc("/auth/codes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeResult(w, []string{"sys_user_view"})
	})
	mux.HandleFunc("/admin/user/info", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, models.UserInfo{Username: "admin", RoleList: []models.Role{{RoleCode: "ROLE_ADMIN"}}})
	})
	mux.HandleFunc("/admin/menu", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []*models.MenuRecord{
			{Path: "/system", Component: "BasicLayout", Meta: models.MenuMeta{Title: "System", Order: 2}, Children: []*models.MenuRecord{
				{Path: "user", Name: "SysUser", Component: "/system/user/index", Meta: models.MenuMeta{Title: "Users", Authority: []string{"sys_user_view"}}},
				{Path: "role", Component: "/system/role/index", Meta: models.MenuMeta{Title: "Roles", Authority: []string{"ROLE_NOPE"}}},
				{Path: "broken", Component: "/missing/page", Meta: models.MenuMeta{Title: "Broken"}},
			}},
			{Path: "/analytics", Component: "/dashboard/analytics", Meta: models.MenuMeta{Title: "Analytics", Order: 1}},
		})
	})
	mux.HandleFunc("/admin/dept/tree", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []models.Record{
			{"deptId": "1", "name": "HQ", "parentId": "0", "children": []models.Record{
				{"deptId": "2", "name": "IT", "parentId": "1"},
				{"deptId": "3", "name": "HR", "parentId": "1"},
			}},
		})
	})
	mux.HandleFunc("/admin/dict/type/lock_flag", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, []models.DictItem{{Label: "Normal", Value: "0", ListClass: "success"}})
	})
	mux.HandleFunc("/admin/role/details", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("roleCode") == "ROLE_ADMIN" {
			writeResult(w, models.Record{"roleId": "1"})
			return
		}
		writeResult(w, nil)
	})
	mux.HandleFunc("/admin/user/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		w.Header().Set("Content-Disposition", `attachment; filename="users.xlsx"`)
		w.Write([]byte("xlsx-bytes"))
	})
	mux.HandleFunc("/ai/reviewDocument/check", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, protocol.CheckResult{})
	})
	mux.HandleFunc("/ai/reviewDocument/chunk", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		mu.Lock()
		chunks[r.FormValue("chunkIndex")] = data
		mu.Unlock()
		writeResult(w, true)
	})
	mux.HandleFunc("/ai/reviewDocument/merge", func(w http.ResponseWriter, r *http.Request) {
		var p protocol.MergeParams
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		n := len(chunks)
		mu.Unlock()
		writeResult(w, protocol.MergedFile{ID: "7", MD5: p.MD5, FileName: p.FileName, Size: int64(n)})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func setEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("CONSOLE_BASE_URL", baseURL)
	t.Setenv("CONSOLE_TOKEN", "test-token")
	t.Setenv("CONSOLE_UNIQUE_DEBOUNCE", "1ms")
	t.Setenv("EXPORT_BACKEND", "local")
	unsetEnv(t, "CONSOLE_USERNAME", "CONSOLE_PASSWORD", "CONSOLE_PWD_ENC_KEY", "CONSOLE_FORMAT", "METRICS_ADDR")
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestCodes(t *testing.T) {
	setEnv(t, backend(t).URL)

	res := run(t, "", "codes")
	if res.err != nil {
		t.Fatalf("codes: %v (%s)", res.err, res.stderr)
	}
	var codes []string
	if err := json.Unmarshal([]byte(res.stdout), &codes); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if len(codes) != 1 || codes[0] != "sys_user_view" {
		t.Errorf("codes = %v", codes)
	}
}

func TestNotLoggedIn(t *testing.T) {
	setEnv(t, backend(t).URL)
	unsetEnv(t, "CONSOLE_TOKEN")

	res := run(t, "", "codes")
	if res.err == nil || !strings.Contains(res.err.Error(), "not logged in") {
		t.Errorf("err = %v", res.err)
	}
}

func TestMissingBaseURL(t *testing.T) {
	setEnv(t, "")

	res := run(t, "", "codes")
	if res.err == nil || !strings.Contains(res.err.Error(), "CONSOLE_BASE_URL") {
		t.Errorf("err = %v", res.err)
	}
}

func TestLogin(t *testing.T) {
	setEnv(t, backend(t).URL)
	unsetEnv(t, "CONSOLE_TOKEN")

	res := run(t, "admin\nsecret\n", "login")
	if res.err != nil {
		t.Fatalf("login: %v (%s)", res.err, res.stderr)
	}
	var s models.Session
	if err := json.Unmarshal([]byte(res.stdout), &s); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if s.AccessToken != "issued-token" || s.Username != "admin" {
		t.Errorf("session = %+v", s)
	}
	if !strings.Contains(res.stderr, "Username: ") || !strings.Contains(res.stderr, "Password: ") {
		t.Errorf("prompts missing from %q", res.stderr)
	}

	res = run(t, "", "login", "--username", "admin", "--password", "wrong")
	if res.err == nil || !strings.Contains(res.err.Error(), "bad credentials") {
		t.Errorf("wrong password err = %v", res.err)
	}
}

func TestAutoLoginFromEnv(t *testing.T) {
	setEnv(t, backend(t).URL)
	unsetEnv(t, "CONSOLE_TOKEN")
	t.Setenv("CONSOLE_USERNAME", "admin")
	t.Setenv("CONSOLE_PASSWORD", "secret")

	if res := run(t, "", "codes"); res.err != nil {
		t.Fatalf("codes: %v", res.err)
	}
}

func TestRoutes(t *testing.T) {
	setEnv(t, backend(t).URL)

	pages := t.TempDir()
	for _, p := range []string{"system/user/index.vue", "system/role/index.vue", "dashboard/analytics.vue"} {
		full := filepath.Join(pages, filepath.FromSlash(p))
		os.MkdirAll(filepath.Dir(full), 0o755)
		os.WriteFile(full, nil, 0o644)
	}

	res := run(t, "", "routes", "--pages-dir", pages)
	if res.err != nil {
		t.Fatalf("routes: %v (%s)", res.err, res.stderr)
	}
	var out struct {
		Routes    []*models.RouteRecord `json:"routes"`
		Menus     []*models.MenuItem    `json:"menus"`
		Home      string                `json:"home"`
		Fallbacks int                   `json:"fallbacks"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if out.Home != "/analytics" || out.Fallbacks != 1 {
		t.Errorf("home = %q, fallbacks = %d", out.Home, out.Fallbacks)
	}
	if len(out.Routes) != 2 || len(out.Routes[0].Children) != 2 {
		t.Fatalf("routes = %+v", out.Routes)
	}
	user := out.Routes[0].Children[0]
	if user.Component != "/system/user/index.vue" || user.Kind != models.KindPage {
		t.Errorf("user route = %+v", user)
	}
	if broken := out.Routes[0].Children[1]; broken.Kind != models.KindForbidden {
		t.Errorf("broken route = %+v", broken)
	}
	if out.Menus[0].Title != "Analytics" {
		t.Errorf("menus not ordered: %+v", out.Menus)
	}
	if !strings.Contains(res.stderr, "Loading menu...") {
		t.Errorf("stderr missing loading notice: %q", res.stderr)
	}
	if !strings.Contains(res.stderr, "1 route(s) bound to the forbidden page") {
		t.Errorf("stderr missing fallback warning: %q", res.stderr)
	}
}

func TestRoutesFrontendOffline(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")

	static := filepath.Join(t.TempDir(), "menus.yaml")
	os.WriteFile(static, []byte(`
- path: /home
  component: BasicLayout
  meta:
    title: Home
- path: /admin
  component: BasicLayout
  meta:
    title: Admin
    authority: [ROLE_ADMIN]
`), 0o644)

	res := run(t, "", "--format", "table", "routes", "--mode", "frontend", "--static", static, "--role", "ROLE_USER")
	if res.err != nil {
		t.Fatalf("routes: %v (%s)", res.err, res.stderr)
	}
	if !strings.Contains(res.stdout, "/home") || strings.Contains(res.stdout, "/admin") {
		t.Errorf("table = %q", res.stdout)
	}
	if !strings.Contains(res.stdout, "home: /home") {
		t.Errorf("table missing home line: %q", res.stdout)
	}
}

func TestTree(t *testing.T) {
	setEnv(t, backend(t).URL)

	res := run(t, "", "tree", "depts")
	if res.err != nil {
		t.Fatalf("tree: %v (%s)", res.err, res.stderr)
	}
	var nodes []map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &nodes); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if len(nodes) != 1 || nodes[0]["name"] != "HQ" {
		t.Fatalf("nodes = %v", nodes)
	}
	kids, _ := nodes[0]["children"].([]any)
	if len(kids) != 2 {
		t.Errorf("children = %v", nodes[0]["children"])
	}

	res = run(t, "", "--format", "table", "tree", "depts")
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !strings.Contains(res.stdout, "  IT") {
		t.Errorf("table not indented: %q", res.stdout)
	}

	res = run(t, "", "tree", "depts", "--leaf-ids", "1,2,3")
	if res.err != nil {
		t.Fatal(res.err)
	}
	var leaves []string
	json.Unmarshal([]byte(res.stdout), &leaves)
	if strings.Join(leaves, ",") != "2,3" {
		t.Errorf("leaves = %v", leaves)
	}
}

func TestDict(t *testing.T) {
	setEnv(t, backend(t).URL)

	res := run(t, "", "dict", "lock_flag")
	if res.err != nil {
		t.Fatalf("dict: %v (%s)", res.err, res.stderr)
	}
	var got map[string][]models.DictOption
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if opts := got["lock_flag"]; len(opts) != 1 || opts[0].ElTagType != "success" {
		t.Errorf("options = %+v", got)
	}
}

func TestUpload(t *testing.T) {
	setEnv(t, backend(t).URL)

	path := filepath.Join(t.TempDir(), "report.pdf")
	os.WriteFile(path, bytes.Repeat([]byte("x"), 100), 0o644)

	res := run(t, "", "upload", "--chunk-size", "40", path)
	if res.err != nil {
		t.Fatalf("upload: %v (%s)", res.err, res.stderr)
	}
	var merged protocol.MergedFile
	if err := json.Unmarshal([]byte(res.stdout), &merged); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if merged.ID != "7" || merged.FileName != "report.pdf" || merged.Size != 3 {
		t.Errorf("merged = %+v", merged)
	}
	if !strings.Contains(res.stderr, "(3/3)") {
		t.Errorf("progress missing: %q", res.stderr)
	}
}

func TestExportLocal(t *testing.T) {
	setEnv(t, backend(t).URL)
	dir := t.TempDir()

	res := run(t, "", "export", "--dir", dir, "users")
	if res.err != nil {
		t.Fatalf("export: %v (%s)", res.err, res.stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, "users.xlsx"))
	if err != nil || string(data) != "xlsx-bytes" {
		t.Errorf("exported = %q, %v", data, err)
	}
	var out exportResult
	json.Unmarshal([]byte(res.stdout), &out)
	if out.Bytes != 10 || out.Backend != "local" {
		t.Errorf("result = %+v", out)
	}
}

func TestValidateRules(t *testing.T) {
	unsetEnv(t, "CONSOLE_FORMAT")
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"email ok", []string{"--rule", "email", "a@b.co"}, 0},
		{"email bad", []string{"--rule", "email", "nope"}, ExitRejected},
		{"blank passes", []string{"--rule", "email", ""}, 0},
		{"pattern", []string{"--pattern", "^[0-9]+$", "--message", "digits only", "12a"}, ExitRejected},
		{"unknown rule", []string{"--rule", "nope", "x"}, ExitError},
		{"nothing to check", []string{"x"}, ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, "", append([]string{"validate"}, tt.args...)...)
			if got := exitCode(res.err); got != tt.code {
				t.Errorf("exit code = %d, want %d (err %v)", got, tt.code, res.err)
			}
		})
	}
}

func TestValidateUnique(t *testing.T) {
	setEnv(t, backend(t).URL)

	res := run(t, "", "validate", "--unique", "roles.roleCode", "ROLE_ADMIN")
	if exitCode(res.err) != ExitRejected {
		t.Fatalf("taken value: err = %v", res.err)
	}
	var v validation
	json.Unmarshal([]byte(res.stdout), &v)
	if v.Valid || !strings.Contains(v.Error, "already exists") {
		t.Errorf("validation = %+v", v)
	}

	if res := run(t, "", "validate", "--unique", "roles.roleCode", "ROLE_NEW"); res.err != nil {
		t.Errorf("free value: %v", res.err)
	}
	if res := run(t, "", "validate", "--edit", "--unique", "roles.roleCode", "ROLE_ADMIN"); res.err != nil {
		t.Errorf("edit mode: %v", res.err)
	}
}

func TestValidateForm(t *testing.T) {
	unsetEnv(t, "CONSOLE_FORMAT")
	res := run(t, `{"roleName":"Admin","roleCode":"admin"}`, "validate", "--form", "role")
	if exitCode(res.err) != ExitRejected {
		t.Fatalf("err = %v", res.err)
	}
	var fes []map[string]string
	if err := json.Unmarshal([]byte(res.stdout), &fes); err != nil {
		t.Fatalf("output %q: %v", res.stdout, err)
	}
	if len(fes) != 1 || fes[0]["field"] != "roleCode" {
		t.Errorf("field errors = %v", fes)
	}

	res = run(t, `{"roleName":"Admin","roleCode":"ROLE_ADMIN"}`, "validate", "--form", "role")
	if res.err != nil {
		t.Errorf("valid form: %v (%s)", res.err, res.stdout)
	}
}

func TestResourceCatalog(t *testing.T) {
	res := run(t, "", "--format", "table", "--no-color", "resource", "catalog")
	if res.err != nil {
		t.Fatal(res.err)
	}
	for _, want := range []string{"NAME", "jobs", "/job/sys-job", "run-job"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("catalog missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery([]string{"a=1", "b=x=y", "a=2"})
	if err != nil {
		t.Fatal(err)
	}
	if q.Encode() != "a=1&a=2&b=x%3Dy" {
		t.Errorf("query = %s", q.Encode())
	}
	if _, err := parseQuery([]string{"novalue"}); err == nil {
		t.Error("expected error")
	}
}
