package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nextrace/internal/config"
	"nextrace/internal/feed"
	appLog "nextrace/internal/log"
	"nextrace/internal/race"
	"nextrace/internal/refresh"
	"nextrace/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	input      string
	logLevel   string
}

func main() {
	flags := parseFlags()

	if flags.logLevel != "" {
		lvl, ok := appLog.ParseLevel(flags.logLevel)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown log level %q\n", flags.logLevel)
			os.Exit(2)
		}
		appLog.SetLevel(lvl)
	}

	appLog.Info("nextrace starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"default_event_timezone", conf.DefaultEventTimezone,
		"refresh", conf.RefreshCron,
		"series_count", len(conf.Series),
		"once", flags.once,
		"input", flags.input,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	display := conf.ViewerLocation()
	times := race.TimeResolver{Display: display, EventZone: conf.EventLocation()}

	var src refresh.Source
	if flags.input != "" {
		src = feed.File{Path: flags.input}
	} else {
		src = feed.NewFetcher(feed.Options{
			URL:      conf.FeedURL,
			CacheDir: conf.CacheDir,
			Timeout:  conf.FetchTimeout(),
		})
	}

	r := refresh.New(src, times, conf.Registry())
	r.SetRunTimeout(2 * conf.FetchTimeout())

	if flags.once || flags.input != "" {
		if err := r.Refresh(ctx); err != nil {
			os.Exit(1)
		}
		printBoard(os.Stdout, r.Board(), display)
		return
	}

	if err := r.Start(ctx, conf.RefreshCron); err != nil {
		appLog.Error("failed to schedule refresh", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	srv := web.NewServer(conf, r, display)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("nextrace exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/nextrace/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the next event per series and exit")
	flag.StringVar(&cfg.input, "input", "", "Read the feed from a local JSON file instead of the network (implies -once)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Parse()

	return cfg
}

// printBoard writes one line per tracked series.
func printBoard(w io.Writer, cards []race.Card, loc *time.Location) {
	for _, c := range cards {
		if c.Event == nil {
			fmt.Fprintf(w, "%-4s %s: no upcoming event\n", c.Series.Code, c.DisplayName)
			continue
		}
		fmt.Fprintf(w, "%-4s %s: %s @ %s, %s | TV %s | Radio %s | Satellite %s\n",
			c.Series.Code,
			c.DisplayName,
			c.RaceName,
			c.Venue,
			c.Event.Start.In(loc).Format("Mon Jan 2 2006 3:04 PM MST"),
			codes(c.Broadcasts.TV),
			codes(c.Broadcasts.Radio),
			codes(c.Broadcasts.Satellite),
		)
	}
}

func codes(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}
