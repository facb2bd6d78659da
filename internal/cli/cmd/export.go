package cmd

import (
	"fmt"
	"path"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/internal/storage"
	"github.com/jmake-zxb/jk-ui/pkg/client"
)

func (rt *runtime) exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Download a resource export into the export sink",
		ArgsUsage: "RESOURCE",
		Description: "The file is written to EXPORT_BACKEND (local directory or S3 bucket).\n" +
			"An empty export writes nothing and fails.",
		Flags: []cli.Flag{
			queryFlag(),
			&cli.StringFlag{Name: "key", Usage: "Object key (default: the server's file name)"},
			&cli.StringFlag{Name: "path", Usage: "Download this API path instead of RESOURCE/export"},
			&cli.StringFlag{Name: "backend", Usage: "Override EXPORT_BACKEND: local or s3"},
			&cli.StringFlag{Name: "dir", Usage: "Override EXPORT_LOCAL_PATH"},
		},
		Action: rt.exportAction,
	}
}

// exportResult describes a stored export.
type exportResult struct {
	Resource string `json:"resource"`
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Bytes    int64  `json:"bytes"`
}

func (rt *runtime) exportAction(c *cli.Context) error {
	if c.NArg() != 1 && c.String("path") == "" {
		return cli.Exit("usage: console export RESOURCE | --path PATH", ExitError)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	api, cfg, err := rt.session(c.Context)
	if err != nil {
		return err
	}
	q, err := parseQuery(c.StringSlice("query"))
	if err != nil {
		return err
	}

	sinkCfg := cfg.Export
	if c.IsSet("backend") {
		sinkCfg.Backend = c.String("backend")
	}
	if c.IsSet("dir") {
		sinkCfg.LocalPath = c.String("dir")
	}
	sink, err := storage.NewSink(c.Context, sinkCfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	name := c.Args().First()
	var dl *client.Download
	if p := c.String("path"); p != "" {
		if name == "" {
			name = path.Base(p)
		}
		dl, err = api.Download(c.Context, p, q)
	} else {
		res := api.Resource(name)
		name = res.Spec().Name
		dl, err = res.Export(c.Context, q)
	}
	if err != nil {
		return err
	}
	defer dl.Close()

	key := firstNonEmpty(c.String("key"), dl.FileName, defaultExportKey(name, time.Now()))
	n, err := sink.PutObject(c.Context, key, dl.Body, dl.Size)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}
	return r.Render(exportResult{
		Resource: name,
		Backend:  sink.Type(),
		Location: sink.Location(key),
		Bytes:    n,
	})
}

func defaultExportKey(name string, now time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", path.Base(name), now.Format("20060102-150405"))
}
