package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/tree"
)

func (rt *runtime) treeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "Fetch a resource list and nest it by parent id",
		ArgsUsage: "RESOURCE",
		Description: "RESOURCE is a catalog name (see `resource catalog`) or a base path.\n" +
			"Lists that already arrive nested are flattened and rebuilt.",
		Flags: append(treeFlags(), queryFlag(),
			&cli.StringFlag{Name: "find", Usage: "Print only the subtree rooted at `ID`"},
			&cli.StringSliceFlag{Name: "leaf-ids", Usage: "Print which of `IDS` are leaves (comma separated, repeatable)"},
		),
		Action: rt.treeAction,
	}
}

// treeRow is one node in table output.
type treeRow struct {
	Node   string `json:"node"`
	ID     string `json:"id"`
	Parent string `json:"parent"`
}

func (rt *runtime) treeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: console tree RESOURCE", ExitError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	api, _, err := rt.session(c.Context)
	if err != nil {
		return err
	}

	res := api.Resource(c.Args().First())
	spec := res.Spec()
	query, err := parseQuery(c.StringSlice("query"))
	if err != nil {
		return err
	}
	records, err := res.List(c.Context, query)
	if err != nil {
		return err
	}

	opts := tree.Options{
		IDField:       firstNonEmpty(c.String("id-field"), spec.IDField),
		ParentIDField: firstNonEmpty(c.String("parent-field"), spec.ParentField),
		ChildrenField: c.String("children-field"),
	}
	if c.IsSet("root") {
		opts.Root = parseRoot(c.String("root"))
	}

	if tree.Count(records, opts.ChildrenField) > len(records) {
		records = tree.Flatten(records, opts.ChildrenField)
	}
	nodes := tree.Build(records, opts)

	if ids := c.StringSlice("leaf-ids"); len(ids) > 0 {
		in := make([]any, len(ids))
		for i, id := range ids {
			in[i] = strings.TrimSpace(id)
		}
		return r.Render(tree.LeafIDs(nodes, opts, in))
	}
	if id := c.String("find"); id != "" {
		found := tree.FindByID(nodes, opts, id)
		if found == nil {
			return cli.Exit(fmt.Sprintf("no node with %s %s", firstNonEmpty(opts.IDField, tree.DefaultIDField), id), ExitError)
		}
		nodes = []models.Record{found}
	}

	if r.Format() != render.FormatTable {
		return r.Render(nodes)
	}
	return r.Render(treeRows(nodes, opts, c.String("label-field")))
}

func treeRows(nodes []models.Record, opts tree.Options, label string) []treeRow {
	parent := firstNonEmpty(opts.ParentIDField, tree.DefaultParentIDField)
	id := firstNonEmpty(opts.IDField, tree.DefaultIDField)
	var rows []treeRow
	tree.Walk(nodes, opts.ChildrenField, func(n models.Record, depth int) bool {
		name := n[label]
		if name == nil {
			name = n[id]
		}
		rows = append(rows, treeRow{
			Node:   strings.Repeat("  ", depth) + fmt.Sprint(name),
			ID:     scalar(n[id]),
			Parent: scalar(n[parent]),
		})
		return true
	})
	return rows
}

func scalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// parseRoot reads numbers as numbers so they match decoded JSON ids.
func parseRoot(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// parseQuery turns KEY=VALUE pairs into query parameters.
func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, cli.Exit(fmt.Sprintf("invalid query %q: want KEY=VALUE", p), ExitError)
		}
		q.Add(k, v)
	}
	return q, nil
}
