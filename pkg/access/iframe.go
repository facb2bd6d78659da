package access

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jmake-zxb/jk-ui/pkg/models"
)

// IframePrefix prefixes the route path of embedded external pages.
const IframePrefix = "/iframes/"

// NormalizeIframes rewrites a freshly fetched menu tree in place and
// returns it. Iframe entries are bound to the iframe layout and their path
// is replaced by an encoded form of the original. Entries with children
// lose their component. Running it twice encodes iframe paths twice, so it
// must only ever see a fresh tree.
func NormalizeIframes(menus []*models.MenuRecord) []*models.MenuRecord {
	for _, m := range menus {
		if m == nil {
			continue
		}
		if m.Meta.IsIframe {
			m.Component = LayoutIFrame
			m.Path = EncodeIframePath(m.Path)
		}
		if m.HasChildren() {
			m.Component = ""
			NormalizeIframes(m.Children)
		}
	}
	return menus
}

// EncodeIframePath returns the route path for an iframe target.
func EncodeIframePath(target string) string {
	return IframePrefix + base64.StdEncoding.EncodeToString([]byte(target))
}

// DecodeIframePath recovers the original path from an encoded iframe route.
func DecodeIframePath(p string) (string, error) {
	if !strings.HasPrefix(p, IframePrefix) {
		return "", fmt.Errorf("not an iframe route: %s", p)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(p, IframePrefix))
	if err != nil {
		return "", fmt.Errorf("decode iframe route %s: %w", p, err)
	}
	return string(raw), nil
}
