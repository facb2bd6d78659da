package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/access"
	"github.com/jmake-zxb/jk-ui/pkg/models"
)

func (rt *runtime) routesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "Resolve the route table and menu for the current user",
		Description: "Pages are discovered below --pages-dir. Components that match no page\n" +
			"or layout are bound to the forbidden page and counted as fallbacks.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "Access mode: frontend, backend, mixed (default: CONSOLE_ACCESS_MODE)"},
			&cli.StringFlag{Name: "pages-dir", Usage: "Directory of page views"},
			&cli.StringFlag{Name: "page-ext", Value: access.DefaultPageExt, Usage: "Extension of page files"},
			&cli.StringFlag{Name: "static", Usage: "JSON or YAML file of static menu declarations"},
			&cli.StringFlag{Name: "home", Usage: "Preferred home path (default: CONSOLE_HOME_PATH)"},
			&cli.StringSliceFlag{Name: "role", Usage: "Role code to resolve for (repeatable)"},
			&cli.StringSliceFlag{Name: "code", Usage: "Permission code to resolve for (repeatable)"},
			&cli.BoolFlag{Name: "menus", Usage: "Print the menu instead of the route table"},
		},
		Action: rt.routesAction,
	}
}

// routeRow is one line of the route table.
type routeRow struct {
	Path      string   `json:"path"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Component string   `json:"component"`
	Authority []string `json:"authority"`
}

// menuRow is one line of the menu.
type menuRow struct {
	Title string `json:"title"`
	Path  string `json:"path"`
	Order int    `json:"order"`
}

func (rt *runtime) routesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	_, cfg, err := rt.backend()
	if err != nil {
		return err
	}

	mode, err := access.ParseMode(firstNonEmpty(c.String("mode"), cfg.AccessMode))
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}

	pages := map[string]access.Component{}
	if dir := c.String("pages-dir"); dir != "" {
		if pages, err = access.PagesFromFS(os.DirFS(dir), ".", c.String("page-ext")); err != nil {
			return fmt.Errorf("scan pages: %w", err)
		}
	}

	var static []*models.MenuRecord
	if path := c.String("static"); path != "" {
		if static, err = loadMenus(path); err != nil {
			return err
		}
	}

	principal := access.Principal{Roles: c.StringSlice("role"), Codes: c.StringSlice("code")}
	offline := mode == access.ModeFrontend && (len(principal.Roles) > 0 || len(principal.Codes) > 0)

	resolver := &access.Resolver{
		Mode:     mode,
		Registry: access.NewRegistry(pages, nil, access.Component{}),
		Static:   static,
		HomePath: firstNonEmpty(c.String("home"), cfg.HomePath),
		Notices:  rt.notices,
	}
	if !offline {
		api, _, err := rt.session(c.Context)
		if err != nil {
			return err
		}
		info, err := api.UserInfo(c.Context)
		if err != nil {
			return err
		}
		codes, err := api.AccessCodes(c.Context)
		if err != nil {
			return err
		}
		principal.Roles = append(principal.Roles, info.RoleCodes()...)
		principal.Codes = append(principal.Codes, codes...)
		resolver.Source = api
	}

	res, err := resolver.Generate(c.Context, principal)
	if err != nil {
		return err
	}
	if res.Fallbacks > 0 {
		fmt.Fprintf(c.App.ErrWriter, "warning: %d route(s) bound to the forbidden page\n", res.Fallbacks)
	}

	if r.Format() != render.FormatTable {
		if c.Bool("menus") {
			return r.Render(res.Menus)
		}
		return r.Render(res)
	}
	if c.Bool("menus") {
		return r.Render(menuRows(res.Menus, 0))
	}
	if err := r.Render(routeRows(res.Routes)); err != nil {
		return err
	}
	r.Line("home: %s", res.Home)
	return nil
}

func routeRows(routes []*models.RouteRecord) []routeRow {
	var rows []routeRow
	for _, rr := range routes {
		rows = append(rows, routeRow{
			Path:      rr.Path,
			Name:      rr.Name,
			Kind:      kindLabel(rr.Kind),
			Component: rr.Component,
			Authority: rr.Authority,
		})
		rows = append(rows, routeRows(rr.Children)...)
	}
	return rows
}

func kindLabel(k models.ComponentKind) string {
	if k == models.KindNone {
		return "-"
	}
	return string(k)
}

func menuRows(items []*models.MenuItem, depth int) []menuRow {
	var rows []menuRow
	for _, it := range items {
		rows = append(rows, menuRow{
			Title: strings.Repeat("  ", depth) + firstNonEmpty(it.Title, it.Name, it.Path),
			Path:  it.Path,
			Order: it.Order,
		})
		rows = append(rows, menuRows(it.Children, depth+1)...)
	}
	return rows
}

// loadMenus reads static menu declarations from a JSON or YAML file.
func loadMenus(path string) ([]*models.MenuRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static menus: %w", err)
	}
	var menus []*models.MenuRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &menus)
	default:
		err = json.Unmarshal(data, &menus)
	}
	if err != nil {
		return nil, fmt.Errorf("parse static menus %s: %w", path, err)
	}
	return menus, nil
}
