package access

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
	"github.com/jmake-zxb/jk-ui/internal/notify"
	"github.com/jmake-zxb/jk-ui/pkg/models"
)

// Mode selects where menu declarations come from.
type Mode string

const (
	ModeFrontend Mode = "frontend"
	ModeBackend  Mode = "backend"
	ModeMixed    Mode = "mixed"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFrontend, ModeBackend, ModeMixed:
		return m, nil
	}
	return "", fmt.Errorf("unknown access mode %q (want frontend, backend or mixed)", s)
}

// ErrNoSource is returned when backend menus are required but no source
// is configured.
var ErrNoSource = errors.New("access: no menu source configured")

// MenuSource fetches the raw menu tree. Each call must return a fresh
// tree the caller may modify.
type MenuSource interface {
	Menus(ctx context.Context) ([]*models.MenuRecord, error)
}

// Principal is the identity menus are filtered for.
type Principal struct {
	Roles []string
	Codes []string
}

func (p Principal) grants() map[string]bool {
	set := make(map[string]bool, len(p.Roles)+len(p.Codes))
	for _, r := range p.Roles {
		set[r] = true
	}
	for _, c := range p.Codes {
		set[c] = true
	}
	return set
}

// Result is one generation pass.
type Result struct {
	Routes    []*models.RouteRecord `json:"routes" yaml:"routes"`
	Menus     []*models.MenuItem    `json:"menus" yaml:"menus"`
	Home      string                `json:"home" yaml:"home"`
	Fallbacks int                   `json:"fallbacks" yaml:"fallbacks"`
}

// LoadingMenuNotice is published while backend menus are fetched.
const LoadingMenuNotice = "Loading menu..."

// Resolver generates route tables. Generate may be called concurrently;
// each pass replaces the result returned by Current.
type Resolver struct {
	Mode     Mode
	Registry *Registry
	Source   MenuSource
	Static   []*models.MenuRecord
	HomePath string
	Notices  *notify.Bus

	mu      sync.RWMutex
	current *Result
}

// Generate fetches, filters and binds menus for p.
func (r *Resolver) Generate(ctx context.Context, p Principal) (*Result, error) {
	mode := r.Mode
	if mode == "" {
		mode = ModeBackend
	}

	raw, err := r.collect(ctx, mode)
	if err != nil {
		metrics.RecordMenuResolution(string(mode), 0, false)
		return nil, err
	}

	reg := r.Registry
	if reg == nil {
		reg = NewRegistry(nil, nil, Component{})
	}
	b := &binder{
		reg:    reg,
		grants: p.grants(),
		seen:   make(map[string]bool),
	}
	routes := b.bindAll(raw, "/", false)
	menus := buildMenus(routes)

	res := &Result{
		Routes:    routes,
		Menus:     menus,
		Home:      resolveHome(r.HomePath, routes, menus),
		Fallbacks: b.fallbacks,
	}

	r.mu.Lock()
	r.current = res
	r.mu.Unlock()

	metrics.RecordMenuResolution(string(mode), countRoutes(routes), true)
	logging.Debug("route table generated",
		logging.String("mode", string(mode)),
		logging.Int("routes", countRoutes(routes)),
		logging.Int("fallbacks", b.fallbacks),
		logging.String("home", res.Home),
	)
	return res, nil
}

// Current returns the result of the last successful pass, or nil.
func (r *Resolver) Current() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Resolver) collect(ctx context.Context, mode Mode) ([]*models.MenuRecord, error) {
	switch mode {
	case ModeFrontend:
		return models.CloneMenus(r.Static), nil
	case ModeBackend:
		return r.fetch(ctx)
	case ModeMixed:
		remote, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		return append(models.CloneMenus(r.Static), remote...), nil
	}
	return nil, fmt.Errorf("unknown access mode %q", mode)
}

// fetch loads the backend tree and normalises it before anything else
// sees it.
func (r *Resolver) fetch(ctx context.Context) ([]*models.MenuRecord, error) {
	if r.Source == nil {
		return nil, ErrNoSource
	}
	r.Notices.Info(LoadingMenuNotice, 1500*time.Millisecond)
	menus, err := r.Source.Menus(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch menus: %w", err)
	}
	return NormalizeIframes(menus), nil
}

type binder struct {
	reg       *Registry
	grants    map[string]bool
	seen      map[string]bool
	fallbacks int
}

func (b *binder) allowed(m *models.MenuRecord) bool {
	if len(m.Meta.Authority) == 0 {
		return true
	}
	for _, a := range m.Meta.Authority {
		if b.grants[a] {
			return true
		}
	}
	return false
}

func (b *binder) bindAll(menus []*models.MenuRecord, parent string, denied bool) []*models.RouteRecord {
	var out []*models.RouteRecord
	for _, m := range menus {
		if m == nil {
			continue
		}
		if rt := b.bind(m, parent, denied); rt != nil {
			out = append(out, rt)
		}
	}
	return out
}

// bind resolves one entry. Below a denied entry only entries marked
// visible-with-forbidden survive, bound to the forbidden page.
func (b *binder) bind(m *models.MenuRecord, parent string, denied bool) *models.RouteRecord {
	denied = denied || !b.allowed(m)
	if denied && !m.Meta.MenuVisibleWithForbidden {
		return nil
	}

	full := joinRoute(parent, m.Path)
	if b.seen[full] {
		logging.Warn("duplicate route path dropped",
			logging.String("path", full),
			logging.String("name", m.Name),
		)
		return nil
	}
	b.seen[full] = true

	rt := &models.RouteRecord{
		Name:      m.Name,
		Path:      m.Path,
		Redirect:  m.Redirect,
		Authority: append([]string(nil), m.Meta.Authority...),
		Meta:      m.Meta,
	}
	rt.Meta.Authority = rt.Authority

	if denied {
		b.bindForbidden(rt)
		metrics.RecordForbiddenFallback("denied")
	} else {
		b.bindComponent(rt, m)
	}
	rt.Children = b.bindAll(m.Children, full, denied)
	return rt
}

func (b *binder) bindComponent(rt *models.RouteRecord, m *models.MenuRecord) {
	if m.Component == "" {
		if m.HasChildren() || m.Redirect != "" || m.Meta.Link != "" {
			rt.Kind = models.KindNone
			return
		}
	}
	if c, ok := b.reg.Lookup(m.Component); ok {
		rt.Component = c.ID
		rt.Kind = c.Kind
		return
	}
	b.fallbacks++
	metrics.RecordForbiddenFallback("unknown_component")
	logging.Warn("menu component not found, using forbidden page",
		logging.String("path", m.Path),
		logging.String("component", m.Component),
	)
	b.bindForbidden(rt)
}

func (b *binder) bindForbidden(rt *models.RouteRecord) {
	f := b.reg.Forbidden()
	rt.Component = f.ID
	rt.Kind = models.KindForbidden
}

func joinRoute(parent, p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(parent, p)
}

func countRoutes(routes []*models.RouteRecord) int {
	n := 0
	for _, r := range routes {
		n += 1 + countRoutes(r.Children)
	}
	return n
}

// buildMenus derives the navigable menu from bound routes.
func buildMenus(routes []*models.RouteRecord) []*models.MenuItem {
	var items []*models.MenuItem
	for _, rt := range routes {
		if rt.Meta.HideInMenu {
			continue
		}
		item := &models.MenuItem{
			Name:  rt.Name,
			Path:  rt.Path,
			Title: rt.Meta.Title,
			Icon:  rt.Meta.Icon,
			Order: rt.Meta.Order,
		}
		if !rt.Meta.HideChildrenInMenu {
			item.Children = buildMenus(rt.Children)
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return items
}

// resolveHome picks the configured home when it is routable, else the
// first navigable leaf, else the root.
func resolveHome(home string, routes []*models.RouteRecord, menus []*models.MenuItem) string {
	index := make(map[string]*models.RouteRecord)
	var walk func([]*models.RouteRecord, string)
	walk = func(rs []*models.RouteRecord, parent string) {
		for _, rt := range rs {
			full := joinRoute(parent, rt.Path)
			if _, ok := index[full]; !ok {
				index[full] = rt
			}
			walk(rt.Children, full)
		}
	}
	walk(routes, "/")

	routable := func(p string) bool {
		rt, ok := index[p]
		return ok && rt.Kind != models.KindForbidden && rt.Kind != models.KindNone
	}

	if home != "" && routable(path.Clean(home)) {
		return path.Clean(home)
	}
	if leaf := firstLeaf(menus, "/", routable); leaf != "" {
		return leaf
	}
	return "/"
}

func firstLeaf(items []*models.MenuItem, parent string, routable func(string) bool) string {
	for _, it := range items {
		full := joinRoute(parent, it.Path)
		if len(it.Children) == 0 {
			if routable(full) {
				return full
			}
			continue
		}
		if leaf := firstLeaf(it.Children, full, routable); leaf != "" {
			return leaf
		}
	}
	return ""
}
