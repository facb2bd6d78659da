package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/dict"
)

func (rt *runtime) dictCommand() *cli.Command {
	return &cli.Command{
		Name:      "dict",
		Usage:     "Show dictionary options",
		ArgsUsage: "TYPE...",
		Action:    rt.dictAction,
	}
}

// dictRow is one option in table output.
type dictRow struct {
	Type      string `json:"type"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	ElTagType string `json:"elTagType"`
}

func (rt *runtime) dictAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: console dict TYPE...", ExitError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	api, _, err := rt.session(c.Context)
	if err != nil {
		return err
	}

	types := c.Args().Slice()
	opts, err := dict.NewCache(api).Get(c.Context, types...)
	if err != nil {
		return err
	}
	if r.Format() != render.FormatTable {
		return r.Render(opts)
	}
	var rows []dictRow
	for _, t := range types {
		for _, o := range opts[t] {
			rows = append(rows, dictRow{Type: t, Label: o.Label, Value: o.Value, ElTagType: o.ElTagType})
		}
	}
	return r.Render(rows)
}
