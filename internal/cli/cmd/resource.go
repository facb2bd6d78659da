package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/client"
)

func (rt *runtime) resourceCommand() *cli.Command {
	return &cli.Command{
		Name:    "resource",
		Aliases: []string{"res"},
		Usage:   "Generic CRUD on console resources",
		Subcommands: []*cli.Command{
			{
				Name:   "catalog",
				Usage:  "List the known resources",
				Action: resourceCatalogAction,
			},
			{
				Name:      "page",
				Usage:     "Fetch one page of records",
				ArgsUsage: "RESOURCE",
				Flags: []cli.Flag{
					queryFlag(),
					&cli.IntFlag{Name: "current", Value: 1, Usage: "Page number"},
					&cli.IntFlag{Name: "size", Value: 10, Usage: "Page size"},
				},
				Action: rt.withResource(resourcePage),
			},
			{
				Name:      "list",
				Usage:     "Fetch the unpaginated list",
				ArgsUsage: "RESOURCE",
				Flags:     []cli.Flag{queryFlag()},
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					q, err := parseQuery(c.StringSlice("query"))
					if err != nil {
						return err
					}
					list, err := res.List(c.Context, q)
					if err != nil {
						return err
					}
					return r.Render(list)
				}),
			},
			{
				Name:      "get",
				Usage:     "Fetch one record by id",
				ArgsUsage: "RESOURCE ID",
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: console resource get RESOURCE ID", ExitError)
					}
					rec, err := res.Get(c.Context, c.Args().Get(1))
					if err != nil {
						return err
					}
					if rec == nil {
						return cli.Exit("not found", ExitError)
					}
					return r.Render(rec)
				}),
			},
			{
				Name:      "create",
				Usage:     "Create a record from JSON (file or stdin)",
				ArgsUsage: "RESOURCE",
				Flags:     []cli.Flag{bodyFlag()},
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					body, err := readBody(c)
					if err != nil {
						return err
					}
					out, err := res.Create(c.Context, body)
					if err != nil {
						return err
					}
					return r.Render(out)
				}),
			},
			{
				Name:      "update",
				Usage:     "Update a record from JSON (file or stdin)",
				ArgsUsage: "RESOURCE",
				Flags:     []cli.Flag{bodyFlag()},
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					body, err := readBody(c)
					if err != nil {
						return err
					}
					out, err := res.Update(c.Context, body)
					if err != nil {
						return err
					}
					return r.Render(out)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete records by id",
				ArgsUsage: "RESOURCE ID...",
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					ids := c.Args().Tail()
					if len(ids) == 0 {
						return cli.Exit("usage: console resource delete RESOURCE ID...", ExitError)
					}
					if err := res.Delete(c.Context, ids...); err != nil {
						return err
					}
					fmt.Fprintf(c.App.ErrWriter, "deleted %d %s\n", len(ids), res.Spec().Name)
					return nil
				}),
			},
			{
				Name:      "action",
				Usage:     "Run a resource action, such as run-job",
				ArgsUsage: "RESOURCE ACTION [ID]",
				Action: rt.withResource(func(c *cli.Context, r *render.Renderer, res *client.Resource) error {
					if c.NArg() < 2 {
						return cli.Exit("usage: console resource action RESOURCE ACTION [ID]", ExitError)
					}
					out, err := res.Action(c.Context, c.Args().Get(1), c.Args().Get(2))
					if err != nil {
						return err
					}
					return r.Render(out)
				}),
			},
		},
	}
}

// catalogRow is one catalog entry in output.
type catalogRow struct {
	Name    string   `json:"name"`
	Base    string   `json:"base"`
	IDField string   `json:"idField"`
	Actions []string `json:"actions"`
}

func resourceCatalogAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	rows := make([]catalogRow, 0, len(client.Catalog))
	for _, name := range client.ResourceNames() {
		s, _ := client.LookupResource(name)
		rows = append(rows, catalogRow{Name: s.Name, Base: s.Base, IDField: s.IDField, Actions: s.Actions})
	}
	return r.Render(rows)
}

func resourcePage(c *cli.Context, r *render.Renderer, res *client.Resource) error {
	q, err := parseQuery(c.StringSlice("query"))
	if err != nil {
		return err
	}
	q.Set("current", fmt.Sprint(c.Int("current")))
	q.Set("size", fmt.Sprint(c.Int("size")))
	page, err := res.Page(c.Context, q)
	if err != nil {
		return err
	}
	if r.Format() == render.FormatTable {
		if err := r.Render(page.Records); err != nil {
			return err
		}
		r.Line("page %d, %d of %d record(s)", page.Current, len(page.Records), page.Total)
		return nil
	}
	return r.Render(page)
}

// withResource resolves the RESOURCE argument and a logged-in client
// before running fn.
func (rt *runtime) withResource(fn func(*cli.Context, *render.Renderer, *client.Resource) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("missing RESOURCE argument", ExitError)
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		api, _, err := rt.session(c.Context)
		if err != nil {
			return err
		}
		return fn(c, r, api.Resource(c.Args().First()))
	}
}

func bodyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "body",
		Usage: "JSON `FILE` with the record (\"-\" or empty reads stdin)",
	}
}

func readBody(c *cli.Context) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path := c.String("body"); path != "" && path != "-" {
		data, err = os.ReadFile(path)
	} else {
		data, err = io.ReadAll(reader(c))
	}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(data) {
		return nil, cli.Exit("body is not valid JSON", ExitError)
	}
	return json.RawMessage(data), nil
}
