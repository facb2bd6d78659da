package models

// MenuMeta holds the route metadata the backend attaches to a menu entry.
type MenuMeta struct {
	Title                    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Icon                     string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Order                    int      `json:"order,omitempty" yaml:"order,omitempty"`
	Authority                []string `json:"authority,omitempty" yaml:"authority,omitempty"`
	IsIframe                 bool     `json:"isIframe,omitempty" yaml:"isIframe,omitempty"`
	IframeSrc                string   `json:"iframeSrc,omitempty" yaml:"iframeSrc,omitempty"`
	Link                     string   `json:"link,omitempty" yaml:"link,omitempty"`
	KeepAlive                bool     `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
	HideInMenu               bool     `json:"hideInMenu,omitempty" yaml:"hideInMenu,omitempty"`
	HideChildrenInMenu       bool     `json:"hideChildrenInMenu,omitempty" yaml:"hideChildrenInMenu,omitempty"`
	MenuVisibleWithForbidden bool     `json:"menuVisibleWithForbidden,omitempty" yaml:"menuVisibleWithForbidden,omitempty"`
}

// MenuRecord is a raw menu entry as served by GET /admin/menu.
// Component is a string identifier resolved later against the page and
// layout registries.
type MenuRecord struct {
	Name      string        `json:"name,omitempty"`
	Path      string        `json:"path"`
	Component string        `json:"component,omitempty"`
	Redirect  string        `json:"redirect,omitempty"`
	Meta      MenuMeta      `json:"meta"`
	Children  []*MenuRecord `json:"children,omitempty"`
}

// HasChildren reports whether the entry is a container.
func (m *MenuRecord) HasChildren() bool {
	return len(m.Children) > 0
}

// CloneMenus deep-copies a menu tree.
func CloneMenus(in []*MenuRecord) []*MenuRecord {
	if in == nil {
		return nil
	}
	out := make([]*MenuRecord, len(in))
	for i, m := range in {
		if m == nil {
			continue
		}
		c := *m
		c.Meta.Authority = append([]string(nil), m.Meta.Authority...)
		c.Children = CloneMenus(m.Children)
		out[i] = &c
	}
	return out
}

// ComponentKind classifies what a route renders.
type ComponentKind string

const (
	KindLayout    ComponentKind = "layout"
	KindPage      ComponentKind = "page"
	KindIFrame    ComponentKind = "iframe"
	KindForbidden ComponentKind = "forbidden"
	KindNone      ComponentKind = ""
)

// RouteRecord is a resolved route table entry bound to a concrete component.
type RouteRecord struct {
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Path      string         `json:"path" yaml:"path"`
	Redirect  string         `json:"redirect,omitempty" yaml:"redirect,omitempty"`
	Component string         `json:"component,omitempty" yaml:"component,omitempty"`
	Kind      ComponentKind  `json:"kind,omitempty" yaml:"kind,omitempty"`
	Authority []string       `json:"authority,omitempty" yaml:"authority,omitempty"`
	Meta      MenuMeta       `json:"meta" yaml:"meta"`
	Children  []*RouteRecord `json:"children,omitempty" yaml:"children,omitempty"`
}

// MenuItem is a navigable menu entry shown to the current principal.
type MenuItem struct {
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Path     string      `json:"path" yaml:"path"`
	Title    string      `json:"title,omitempty" yaml:"title,omitempty"`
	Icon     string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Order    int         `json:"order,omitempty" yaml:"order,omitempty"`
	Children []*MenuItem `json:"children,omitempty" yaml:"children,omitempty"`
}
