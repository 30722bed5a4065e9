// Command roomctl is a terminal browser for the room listing.  It pages
// through GET /v1/rooms (or /v1/admin/rooms with -token) using the same
// keyset cursors and page cache as the web UI.
//
//	n            next page
//	p            previous page
//	r            retry the last failed fetch
//	s <mode>     sort: updated_desc | price_asc | price_desc
//	f <district> toggle a district filter ("f" alone clears them)
//	q <text>     search ("q" alone clears it)
//	quit         exit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/room-rental/internal/model"
	"github.com/iliyamo/room-rental/internal/pagination"
)

func main() {
	base := flag.String("api", envOr("ROOMS_API", "http://localhost:8080"), "listing API base URL")
	token := flag.String("token", os.Getenv("ROOMS_TOKEN"), "admin access token (empty for the public listing)")
	limit := flag.Int("limit", 10, "rows per page")
	total := flag.Bool("total", false, "ask for the total row count")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	f, err := pagination.NewHTTPFetcher(*base, *token)
	if err != nil {
		slog.Error("roomctl.init", "error", err)
		os.Exit(2)
	}
	tier := model.TierPublic
	if *token != "" {
		tier = model.TierAdmin1
	}
	b := pagination.NewBrowser(f, tier, *limit)
	b.IncludeTotal(*total)

	if err := run(context.Background(), b, os.Stdin, os.Stdout); err != nil {
		slog.Error("roomctl", "error", err)
		os.Exit(1)
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// run reads commands until quit or EOF.
func run(ctx context.Context, b *pagination.Browser, in io.Reader, out io.Writer) error {
	show(ctx, out, b, func(ctx context.Context) (pagination.Page, error) { return b.Next(ctx) })

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		arg = strings.TrimSpace(arg)

		var step func(context.Context) (pagination.Page, error)
		switch cmd {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "n":
			step = b.Next
		case "p":
			step = b.Prev
		case "r":
			step = b.Retry
		case "s":
			m, ok := model.ParseSortMode(arg)
			if !ok {
				fmt.Fprintln(out, "sort must be updated_desc, price_asc or price_desc")
				continue
			}
			b.SetSort(m)
			step = b.Next
		case "f":
			flt := b.Snapshot().Filters
			flt.Districts = toggle(flt.Districts, arg)
			b.SetFilters(flt)
			step = b.Next
		case "q":
			flt := b.Snapshot().Filters
			flt.Search = arg
			b.SetFilters(flt)
			step = b.Next
		default:
			fmt.Fprintln(out, "commands: n, p, r, s <sort>, f <district>, q <search>, quit")
			continue
		}
		show(ctx, out, b, step)
	}
}

func toggle(set []string, v string) []string {
	if v == "" {
		return nil
	}
	out := make([]string, 0, len(set)+1)
	found := false
	for _, s := range set {
		if s == v {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

func show(ctx context.Context, out io.Writer, b *pagination.Browser, step func(context.Context) (pagination.Page, error)) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	p, err := step(ctx)
	switch {
	case errors.Is(err, pagination.ErrNoMorePages):
		fmt.Fprintln(out, "(end of list)")
		return
	case errors.Is(err, pagination.ErrCursorReset):
		fmt.Fprintln(out, "(listing changed; back to the first page)")
		return
	case errors.Is(err, pagination.ErrDeviceRejected):
		fmt.Fprintln(out, "(this device was signed out:", err, ")")
		return
	case err != nil:
		fmt.Fprintln(out, "error:", err, "(r to retry)")
		return
	}

	snap := b.Snapshot()
	header := fmt.Sprintf("page %d, sort %s", snap.Index+1, snap.Sort)
	if p.Total != nil {
		header += fmt.Sprintf(", %d rooms", *p.Total)
	}
	if p.Reset {
		header += " (cursor reset)"
	}
	fmt.Fprintln(out, header)
	for _, r := range p.Rows {
		fmt.Fprintln(out, " ", formatRow(r))
	}
	if len(p.Rows) == 0 {
		fmt.Fprintln(out, "  (no rooms)")
	}
	if snap.HasNext {
		fmt.Fprintln(out, "  ... n for more")
	}
}

func formatRow(r model.Row) string {
	var pub model.PublicRow
	switch v := r.(type) {
	case model.PublicRow:
		pub = v
	case model.AdminTier1Row:
		pub = v.PublicRow
	case model.AdminTier2Row:
		pub = v.PublicRow
	default:
		return r.RowID()
	}
	return fmt.Sprintf("%-36s %-28.28s %-12s %-12s %12d VND %s",
		pub.ID, pub.Title, pub.District, pub.RoomType, pub.PriceVND, strings.ToLower(pub.Status))
}
