package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/jmake-zxb/jk-ui/internal/render"
	"github.com/jmake-zxb/jk-ui/pkg/client"
)

func (rt *runtime) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in with the password grant and print the token",
		Description: "Tokens are not stored. Export the printed access token as\n" +
			"CONSOLE_TOKEN to reuse it in later commands.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username (default: CONSOLE_USERNAME, else prompt)"},
			&cli.StringFlag{Name: "password", Usage: "Password (default: CONSOLE_PASSWORD, else prompt)"},
			&cli.StringFlag{Name: "code", Usage: "Captcha answer"},
			&cli.StringFlag{Name: "random-str", Usage: "Captcha challenge id"},
		},
		Action: rt.loginAction,
	}
}

func (rt *runtime) loginAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	api, cfg, err := rt.backend()
	if err != nil {
		return err
	}

	in := bufio.NewReader(reader(c))
	username := firstNonEmpty(c.String("username"), cfg.Username)
	if username == "" {
		if username, err = prompt(c, in, "Username: "); err != nil {
			return err
		}
	}
	password := firstNonEmpty(c.String("password"), cfg.Password)
	if password == "" {
		if password, err = promptPassword(c, in); err != nil {
			return err
		}
	}

	s, err := api.Login(c.Context, client.LoginParams{
		Username:  username,
		Password:  password,
		Code:      c.String("code"),
		RandomStr: c.String("random-str"),
	})
	if err != nil {
		return err
	}
	return r.Render(s)
}

func (rt *runtime) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Revoke the current token",
		Action: func(c *cli.Context) error {
			api, _, err := rt.session(c.Context)
			if err != nil {
				return err
			}
			if err := api.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.ErrWriter, "logged out")
			return nil
		},
	}
}

func (rt *runtime) codesCommand() *cli.Command {
	return &cli.Command{
		Name:  "codes",
		Usage: "List the permission codes of the current user",
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			api, _, err := rt.session(c.Context)
			if err != nil {
				return err
			}
			codes, err := api.AccessCodes(c.Context)
			if err != nil {
				return err
			}
			return r.Render(codes)
		},
	}
}

func (rt *runtime) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current user's profile",
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			api, _, err := rt.session(c.Context)
			if err != nil {
				return err
			}
			info, err := api.UserInfo(c.Context)
			if err != nil {
				return err
			}
			return r.Render(info)
		},
	}
}

func reader(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

func prompt(c *cli.Context, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(c.App.ErrWriter, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo from a terminal, or a plain line
// otherwise.
func promptPassword(c *cli.Context, in *bufio.Reader) (string, error) {
	f, ok := reader(c).(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(c, in, "Password: ")
	}
	fmt.Fprint(c.App.ErrWriter, "Password: ")
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
