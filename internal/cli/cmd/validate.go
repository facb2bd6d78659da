package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/validate"
)

// forms maps --form names to the DTOs they decode into.
var forms = map[string]func() any{
	"user": func() any { return &models.UserForm{} },
	"role": func() any { return &models.RoleForm{} },
	"dict": func() any { return &models.DictForm{} },
}

func (rt *runtime) validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a value against named rules, a pattern or backend uniqueness",
		ArgsUsage: "[VALUE]",
		Description: "Exits 2 when the value is rejected. With --form, validates a JSON record\n" +
			"(from --body or stdin) instead of a single value.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "rule", Aliases: []string{"r"}, Usage: "Named rule (repeatable, see --list)"},
			&cli.StringFlag{Name: "pattern", Usage: "Regular expression the value must match"},
			&cli.StringFlag{Name: "message", Usage: "Message for a --pattern failure"},
			&cli.StringFlag{Name: "unique", Usage: "Check RESOURCE.FIELD on the backend, e.g. roles.roleCode"},
			&cli.BoolFlag{Name: "edit", Usage: "Edit mode: skip the uniqueness check"},
			&cli.StringFlag{Name: "form", Usage: "Validate a record: user, role or dict"},
			bodyFlag(),
			&cli.BoolFlag{Name: "list", Usage: "List rule names"},
		},
		Action: rt.validateAction,
	}
}

// validation is the outcome for a single value.
type validation struct {
	Value string `json:"value"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (rt *runtime) validateAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("list") {
		return r.Render(validate.Names())
	}
	if form := c.String("form"); form != "" {
		return validateForm(c, r, form)
	}
	if c.NArg() != 1 {
		return cli.Exit("usage: console validate [--rule NAME]... [--pattern RE] [--unique RESOURCE.FIELD] VALUE", ExitError)
	}
	value := c.Args().First()

	var checks []validate.Validator
	for _, name := range c.StringSlice("rule") {
		rule, ok := validate.Lookup(name)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown rule %q (see --list)", name), ExitError)
		}
		checks = append(checks, rule)
	}
	if expr := c.String("pattern"); expr != "" {
		rule, err := validate.Regexp(expr, c.String("message"))
		if err != nil {
			return cli.Exit(err.Error(), ExitError)
		}
		checks = append(checks, rule)
	}

	ctx := c.Context
	if spec := c.String("unique"); spec != "" {
		resource, field, ok := strings.Cut(spec, ".")
		if !ok || resource == "" || field == "" {
			return cli.Exit("--unique wants RESOURCE.FIELD", ExitError)
		}
		api, cfg, err := rt.session(ctx)
		if err != nil {
			return err
		}
		checks = append(checks, validate.NewUnique(field, api.ExistsChecker(resource, field), cfg.UniqueDebounce))
		if c.Bool("edit") {
			ctx = validate.EditMode(ctx)
		}
	}
	if len(checks) == 0 {
		return cli.Exit("nothing to check: give --rule, --pattern or --unique", ExitError)
	}

	return reportValue(r, value, validate.All(checks...).Validate(ctx, value))
}

func reportValue(r *render.Renderer, value string, err error) error {
	var re *validate.RuleError
	if err != nil && !errors.As(err, &re) {
		return err
	}
	out := validation{Value: value, Valid: err == nil}
	if err != nil {
		out.Error = err.Error()
	}
	if rerr := r.Render(out); rerr != nil {
		return rerr
	}
	if err != nil {
		return cli.Exit("", ExitRejected)
	}
	return nil
}

func validateForm(c *cli.Context, r *render.Renderer, name string) error {
	newForm, ok := forms[name]
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown form %q: want user, role or dict", name), ExitError)
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	form := newForm()
	if err := json.Unmarshal(body, form); err != nil {
		return cli.Exit(fmt.Sprintf("decode %s form: %v", name, err), ExitError)
	}

	engine, err := validate.NewEngine()
	if err != nil {
		return err
	}
	err = engine.Struct(form)
	var fes validate.FieldErrors
	if err != nil && !errors.As(err, &fes) {
		return err
	}
	if fes == nil {
		fes = validate.FieldErrors{}
	}
	if rerr := r.Render(fes); rerr != nil {
		return rerr
	}
	if len(fes) > 0 {
		return cli.Exit("", ExitRejected)
	}
	return nil
}
