package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/photofeed/internal/feed"
)

func pagesFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "pages",
		Usage: "number of pages to load",
		Value: 1,
		Validator: func(n int) error {
			if n < 1 {
				return errors.New("pages must be at least 1")
			}
			return nil
		},
	}
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:   "feed",
		Usage:  "list the newest photos",
		Flags:  []cli.Flag{pagesFlag()},
		Action: withSession(feedAction),
	}
}

func feedAction(ctx context.Context, cmd *cli.Command, s *session) error {
	engine := s.app.Feed()
	for range cmd.Int("pages") {
		if engine.EndReached() {
			break
		}
		if _, err := engine.FetchNextPage(ctx); err != nil {
			return fmt.Errorf("loading photos: %w", err)
		}
	}

	return renderPhotos(stdout(cmd), engine.Photos())
}

func likeCommand(like bool) *cli.Command {
	name, usage := "like", "like a photo"
	if !like {
		name, usage = "unlike", "remove the like from a photo"
	}

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PHOTO_ID",
		Flags:     []cli.Flag{pagesFlag()},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("photo id required")
			}
			return changeLike(ctx, cmd, s, id, like)
		}),
	}
}

// changeLike loads pages until the photo is part of the feed, then toggles its like.
func changeLike(ctx context.Context, cmd *cli.Command, s *session, id string, like bool) error {
	engine := s.app.Feed()
	contains := func(p feed.Photo) bool { return p.ID == id }

	for range cmd.Int("pages") {
		if slices.ContainsFunc(engine.Photos(), contains) || engine.EndReached() {
			break
		}
		if _, err := engine.FetchNextPage(ctx); err != nil {
			return fmt.Errorf("loading photos: %w", err)
		}
	}

	photo, err := engine.ChangeLike(ctx, id, like)
	if errors.Is(err, feed.ErrPhotoNotFound) {
		return fmt.Errorf("%s is not among the loaded photos, try a larger --pages: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("changing like: %w", err)
	}

	fmt.Fprintf(stdout(cmd), "%s %s\n", likedMarker(photo.IsLiked), photo.ID)
	if photo.IsLiked != like {
		color.New(color.FgYellow).Fprintln(stdout(cmd), "⚠ server reported a different like state")
	}
	return nil
}
