// giveawayctl inspects and maintains the giveaway store while the bot is
// stopped (file and sqlite backends) or running (redis backend).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/fatih/color"

	"github.com/roblox669900-cpu/giveaway-bot/internal/common/config"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/logger"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/models"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/store"
	"github.com/roblox669900-cpu/giveaway-bot/internal/utils/duration"
)

var (
	headerColor = color.New(color.FgHiCyan, color.Bold)
	activeColor = color.New(color.FgHiGreen)
	endedColor  = color.New(color.FgHiBlack)
	abortColor  = color.New(color.FgHiRed)
)

func main() {
	cfg := &config.Config{}
	flag.StringVar(&cfg.Store.Backend, "backend", envOr("STORE_BACKEND", config.StoreFile), "store backend: file, sqlite or redis")
	flag.StringVar(&cfg.Store.FilePath, "file", envOr("STORE_FILE_PATH", "giveaways.json"), "file backend path")
	flag.StringVar(&cfg.Store.SQLitePath, "sqlite", envOr("STORE_SQLITE_PATH", "giveaways.db"), "sqlite backend path")
	flag.StringVar(&cfg.Redis.Addr, "redis", envOr("REDIS_ADDR", "localhost:6379"), "redis address")
	flag.StringVar(&cfg.Redis.Password, "redis-password", os.Getenv("REDIS_PASSWORD"), "redis password")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	if cfg.Store.Backend == config.StoreMemory {
		fmt.Fprintln(os.Stderr, "the memory backend is not shared with the bot")
		os.Exit(2)
	}

	logger.InitWithWriter(os.Stderr, "giveawayctl", false)

	ctx := context.Background()
	repo, _, err := store.Open(ctx, cfg)
	if err != nil {
		abortColor.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := run(ctx, repo, flag.Args(), os.Stdout, time.Now()); err != nil {
		abortColor.Fprintf(os.Stderr, "%v\n", err)
		repo.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: giveawayctl [flags] <command>

commands:
  list [-archived] [-guild ID]   list giveaways
  show [-archived] ID            show one giveaway
  prune -older-than DURATION     delete archived giveaways resolved before now-DURATION

flags:
`)
	flag.PrintDefaults()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, repo repository.GiveawayRepository, args []string, out io.Writer, now time.Time) error {
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		archived := fs.Bool("archived", false, "list resolved giveaways")
		guild := fs.String("guild", "", "only this guild")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		var guildID snowflake.ID
		if *guild != "" {
			id, err := snowflake.Parse(*guild)
			if err != nil {
				return fmt.Errorf("invalid guild id %q", *guild)
			}
			guildID = id
		}
		return list(ctx, repo, *archived, guildID, out, now)

	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		archived := fs.Bool("archived", false, "look in the archive")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("show needs a giveaway id")
		}
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid giveaway id %q", fs.Arg(0))
		}
		return show(ctx, repo, id, *archived, out, now)

	case "prune":
		fs := flag.NewFlagSet("prune", flag.ContinueOnError)
		olderThan := fs.Duration("older-than", 0, "retention, e.g. 720h")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *olderThan <= 0 {
			return fmt.Errorf("prune needs a positive -older-than")
		}
		n, err := repo.PruneArchive(ctx, now.Add(-*olderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d archived giveaway(s)\n", n)
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func list(ctx context.Context, repo repository.GiveawayRepository, archived bool, guildID snowflake.ID, out io.Writer, now time.Time) error {
	var (
		gs  []*models.Giveaway
		err error
	)
	if archived {
		gs, err = repo.ListArchived(ctx, guildID)
	} else {
		gs, err = repo.ListActive(ctx)
	}
	if err != nil {
		return err
	}

	headerColor.Fprintf(out, "%-6s %-10s %-20s %-8s %s\n", "ID", "STATUS", "GUILD", "WINNERS", "PRIZE")
	shown := 0
	for _, g := range gs {
		if guildID != 0 && g.GuildID != guildID {
			continue
		}
		statusColor(g.Status).Fprintf(out, "%-6d %-10s %-20s %-8d %s", g.ID, g.Status, g.GuildID, g.WinnerCount, g.Prize)
		if !g.Status.IsTerminal() {
			fmt.Fprintf(out, " (ends in %s)", duration.FormatRemaining(int64(g.Remaining(now)/time.Second)))
		}
		fmt.Fprintln(out)
		shown++
	}
	fmt.Fprintf(out, "%d giveaway(s)\n", shown)
	return nil
}

func show(ctx context.Context, repo repository.GiveawayRepository, id int64, archived bool, out io.Writer, now time.Time) error {
	get := repo.GetByID
	if archived {
		get = repo.GetArchived
	}
	g, err := get(ctx, id)
	if err != nil {
		return fmt.Errorf("giveaway %d: %w", id, err)
	}

	headerColor.Fprintf(out, "Giveaway %d\n", g.ID)
	fmt.Fprintf(out, "prize:     %s\n", g.Prize)
	fmt.Fprintf(out, "guild:     %s\n", g.GuildID)
	fmt.Fprintf(out, "host:      %s\n", g.HostID)
	statusColor(g.Status).Fprintf(out, "status:    %s\n", g.Status)
	fmt.Fprintf(out, "winners:   %d\n", g.WinnerCount)
	fmt.Fprintf(out, "messages:  %d\n", g.Requirements.Messages)
	fmt.Fprintf(out, "voice:     %gm\n", g.Requirements.VoiceMinutes)
	fmt.Fprintf(out, "ends:      %s\n", g.EndsAt.UTC().Format(time.RFC3339))
	if !g.Status.IsTerminal() {
		fmt.Fprintf(out, "left:      %s\n", duration.FormatRemaining(int64(g.Remaining(now)/time.Second)))
	}
	if len(g.Winners) > 0 {
		fmt.Fprintf(out, "drawn:     %v\n", g.Winners)
	}
	if len(g.Rerolls) > 0 {
		fmt.Fprintf(out, "rerolls:   %v\n", g.Rerolls)
	}
	if g.AbortReason != "" {
		fmt.Fprintf(out, "reason:    %s\n", g.AbortReason)
	}
	return nil
}

func statusColor(s models.Status) *color.Color {
	switch s {
	case models.StatusCompleted:
		return endedColor
	case models.StatusAborted, models.StatusCancelled:
		return abortColor
	}
	return activeColor
}
