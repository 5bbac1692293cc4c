package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/photofeed/internal/oauth"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authorize this client and store the access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "code",
				Usage: "authorization code; read from stdin when omitted",
			},
		},
		Action: withSession(loginAction),
	}
}

func loginAction(ctx context.Context, cmd *cli.Command, s *session) error {
	ex, err := s.app.Exchanger()
	if err != nil {
		return err
	}
	out := stdout(cmd)

	code := cmd.String("code")
	if code == "" {
		fmt.Fprintln(out, "Open this page and authorize photofeed:")
		fmt.Fprintln(out, "  "+ex.AuthCodeURL(ex.IssueState()))

		in := stdin(cmd)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(out, "Paste the code or the page address: ")
		}

		line, err := readLine(in)
		if err != nil {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		code, err = parseCode(ex, line)
		if err != nil {
			return err
		}
	}

	if _, err := ex.Exchange(ctx, code); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	color.New(color.FgGreen).Fprintln(out, "✓ logged in")
	return nil
}

// parseCode accepts either a bare code or the address of the page that shows
// it. An address carrying a state must answer the request issued above.
func parseCode(ex *oauth.Exchanger, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no authorization code given")
	}

	u, err := url.Parse(input)
	if err != nil || u.Scheme == "" {
		return input, nil
	}

	if state := u.Query().Get("state"); state != "" && !ex.ConsumeState(state) {
		return "", errors.New("the address answers a different login attempt, start over")
	}
	code, ok := ex.CodeFromRedirect(u)
	if !ok {
		return "", errors.New("no authorization code in the address")
	}
	return code, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
