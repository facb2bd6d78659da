package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/config"
)

// GlobalFlags returns the app-level flags. Each call returns fresh flags,
// so several apps can be built in one process.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, table, yaml",
			EnvVars: []string{"CONSOLE_FORMAT"},
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.StringSliceFlag{
			Name:  "env-file",
			Usage: "Load environment from `FILE` (missing files are skipped)",
			Value: cli.NewStringSlice(config.DefaultEnvFiles...),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Shorthand for --log-level debug",
		},
	}
}

// treeFlags are shared by commands that build trees.
func treeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id-field", Usage: "Primary key field (default: the resource's)"},
		&cli.StringFlag{Name: "parent-field", Usage: "Parent key field (default: the resource's, or parentId)"},
		&cli.StringFlag{Name: "children-field", Value: "children", Usage: "Field nested children are stored under"},
		&cli.StringFlag{Name: "label-field", Value: "name", Usage: "Field shown for each node in table output"},
		&cli.StringFlag{Name: "root", Usage: "Parent id of top-level records (default: smallest parent id)"},
	}
}

// queryFlag collects key=value query parameters.
func queryFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "Query parameter `KEY=VALUE` (repeatable)",
	}
}
