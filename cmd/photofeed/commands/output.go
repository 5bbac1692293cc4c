package commands

import (
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/florianilch/photofeed/internal/feed"
)

// newTable creates a borderless, left-aligned table.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

// renderPhotos writes one row per photo.
func renderPhotos(w io.Writer, photos []feed.Photo) error {
	rows := make([][]string, 0, len(photos))
	for _, p := range photos {
		rows = append(rows, []string{
			p.ID,
			strconv.Itoa(p.Size.Width) + "x" + strconv.Itoa(p.Size.Height),
			formatDate(p.CreatedAt),
			likedMarker(p.IsLiked),
			p.Description,
		})
	}

	table := newTable(w)
	table.Header([]string{"id", "size", "created", "liked", "description"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func likedMarker(liked bool) string {
	if liked {
		return color.RedString("♥")
	}
	return color.WhiteString("♡")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
