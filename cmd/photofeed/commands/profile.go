package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:   "profile",
		Usage:  "show the signed-in user",
		Action: withSession(profileAction),
	}
}

func profileAction(ctx context.Context, cmd *cli.Command, s *session) error {
	p, err := s.app.Profile().FetchProfile(ctx)
	if err != nil {
		return err
	}

	out := stdout(cmd)
	color.New(color.Bold).Fprintln(out, p.Name)
	fmt.Fprintln(out, p.LoginName)
	if p.Bio != "" {
		fmt.Fprintln(out, p.Bio)
	}

	// the avatar is decoration, a failure still shows the profile
	avatar, err := s.app.Profile().FetchAvatarURL(ctx, p.Username)
	if err != nil {
		slog.WarnContext(ctx, "avatar unavailable", "error", err)
		return nil
	}
	fmt.Fprintln(out, color.New(color.Faint).Sprint(avatar))
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored access token",
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			if err := s.app.Logout(ctx); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintln(stdout(cmd), "✓ logged out")
			return nil
		}),
	}
}
