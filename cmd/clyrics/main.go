// Command clyrics manages the custom lyrics database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/internal/config"
	"lyrics-engine/pkg/clyrics"
	"lyrics-engine/pkg/lrc"
	"lyrics-engine/pkg/lyric"
)

const usage = `usage: clyrics <command> [flags]

commands:
  import -song S -artist A -duration SECONDS [-album B] [-video ID] [-plain] FILE
  list
  show ID
  delete ID
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	store, err := clyrics.Open(cfg.Store.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.Store.DBPath).Msg("Failed to open custom lyrics database")
	}
	defer store.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "import":
		err = runImport(ctx, store, cfg.Fixers, os.Args[2:])
	case "list":
		err = runList(ctx, store)
	case "show":
		err = runShow(ctx, store, os.Args[2:])
	case "delete":
		err = runDelete(ctx, store, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runImport(ctx context.Context, store *clyrics.Store, fixers lrc.FixerConfig, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	song := fs.String("song", "", "song title")
	artist := fs.String("artist", "", "artist")
	album := fs.String("album", "", "album (optional)")
	duration := fs.Float64("duration", 0, "track length in seconds")
	video := fs.String("video", "", "video id (optional)")
	plain := fs.Bool("plain", false, "file is plain text, not LRC")
	fs.Parse(args)

	if fs.NArg() != 1 || *song == "" || *artist == "" || *duration <= 0 {
		return fmt.Errorf("import needs -song, -artist, -duration and one file")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fs.Arg(0), err)
	}

	lines := parseFile(string(data), *duration, *plain, fixers)
	if len(lines) == 0 {
		return fmt.Errorf("no lyrics found in %s", fs.Arg(0))
	}

	rec := &clyrics.Record{
		VideoID:  *video,
		Song:     *song,
		Artist:   *artist,
		Album:    *album,
		Duration: *duration,
		Lyrics:   lines,
	}
	if err := store.Save(ctx, rec); err != nil {
		return err
	}
	fmt.Printf("saved #%d: %s - %s (%d lines)\n", rec.ID, rec.Artist, rec.Song, len(lines))
	return nil
}

func parseFile(text string, duration float64, plain bool, fixers lrc.FixerConfig) []lyric.Line {
	if plain {
		return lrc.ParsePlainLyrics(text)
	}
	lines := lrc.ParseLRC(text, int64(duration*1000))
	lrc.Fix(lines, fixers)
	return lines
}

func runList(ctx context.Context, store *clyrics.Store) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%4d  %s - %s  [%s]  %.0fs  %s\n",
			r.ID, r.Artist, r.Song, r.Album, r.Duration,
			time.UnixMilli(r.Modified).Format(time.DateTime))
	}
	return nil
}

func runShow(ctx context.Context, store *clyrics.Store, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("# %s - %s\n", rec.Artist, rec.Song)
	for _, l := range rec.Lyrics {
		fmt.Printf("[%s] %s\n", lrc.FormatTime(l.StartTimeMs), l.Words)
	}
	return nil
}

func runDelete(ctx context.Context, store *clyrics.Store, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("deleted #%d\n", id)
	return nil
}

func parseID(args []string) (uint, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one id")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	return uint(id), nil
}
