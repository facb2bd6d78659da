// Package access turns raw menu trees into the route table and navigable
// menu visible to a principal.
package access

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/jmake-zxb/jk-ui/pkg/models"
)

// Well-known component identifiers.
const (
	LayoutBasic  = "BasicLayout"
	LayoutIFrame = "IFrameView"

	DefaultForbiddenID = "/_core/fallback/forbidden.vue"
	DefaultPageExt     = ".vue"
)

// Component is a renderable handle a route can bind to.
type Component struct {
	ID   string               `json:"id" yaml:"id"`
	Kind models.ComponentKind `json:"kind" yaml:"kind"`
}

// Registry maps component identifiers to components. It is read-only after
// NewRegistry returns and safe for concurrent use.
type Registry struct {
	pages     map[string]Component
	layouts   map[string]Component
	forbidden Component
	ext       string
}

// NewRegistry copies pages and layouts into a new registry. A nil layouts
// map selects DefaultLayouts, a zero forbidden selects the default
// forbidden page.
func NewRegistry(pages, layouts map[string]Component, forbidden Component) *Registry {
	if layouts == nil {
		layouts = DefaultLayouts()
	}
	if forbidden.ID == "" {
		forbidden = Component{ID: DefaultForbiddenID, Kind: models.KindForbidden}
	}
	forbidden.Kind = models.KindForbidden

	r := &Registry{
		pages:     make(map[string]Component, len(pages)),
		layouts:   make(map[string]Component, len(layouts)),
		forbidden: forbidden,
		ext:       DefaultPageExt,
	}
	for k, c := range pages {
		r.pages[NormalizeViewPath(k, r.ext)] = c
	}
	for k, c := range layouts {
		r.layouts[k] = c
	}
	return r
}

// DefaultLayouts returns the two layouts every console ships.
func DefaultLayouts() map[string]Component {
	return map[string]Component{
		LayoutBasic:  {ID: LayoutBasic, Kind: models.KindLayout},
		LayoutIFrame: {ID: LayoutIFrame, Kind: models.KindIFrame},
	}
}

// Lookup resolves a menu component string, layouts first, then pages.
func (r *Registry) Lookup(name string) (Component, bool) {
	if name == "" {
		return Component{}, false
	}
	if c, ok := r.layouts[name]; ok {
		return c, true
	}
	c, ok := r.pages[NormalizeViewPath(name, r.ext)]
	return c, ok
}

// Forbidden returns the fallback component.
func (r *Registry) Forbidden() Component {
	return r.forbidden
}

// Pages returns the number of registered pages.
func (r *Registry) Pages() int {
	return len(r.pages)
}

// NormalizeViewPath canonicalises a view identifier: relative prefixes are
// removed, a leading slash is ensured, a leading /views directory is
// stripped and ext is appended when missing.
func NormalizeViewPath(p, ext string) string {
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
			continue
		case strings.HasPrefix(p, "../"):
			p = p[3:]
			continue
		}
		break
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p == "/views" {
		p = "/"
	} else if strings.HasPrefix(p, "/views/") {
		p = strings.TrimPrefix(p, "/views")
	}
	if ext != "" && !strings.HasSuffix(p, ext) {
		p += ext
	}
	return p
}

// PagesFromFS registers every file under root whose name ends in ext as a
// page. Identifiers are the file paths relative to root.
func PagesFromFS(fsys fs.FS, root, ext string) (map[string]Component, error) {
	if ext == "" {
		ext = DefaultPageExt
	}
	if root == "" {
		root = "."
	}
	pages := make(map[string]Component)
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ext {
			return nil
		}
		rel := strings.TrimPrefix(p, root)
		id := NormalizeViewPath(path.Join("/", rel), ext)
		pages[id] = Component{ID: id, Kind: models.KindPage}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pages in %s: %w", root, err)
	}
	return pages, nil
}
