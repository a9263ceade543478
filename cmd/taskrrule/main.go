package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"taskrrule/internal/config"
	"taskrrule/internal/ics"
	appLog "taskrrule/internal/log"
	"taskrrule/internal/recur"
	"taskrrule/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	timezone   string
	parse      string
	describe   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.timezone != "" {
		if _, err := time.LoadLocation(flags.timezone); err != nil {
			appLog.Error("invalid -tz", err, "tz", flags.timezone)
			os.Exit(2)
		}
		conf.Timezone = flags.timezone
	}

	appLog.SetLevel(appLog.ParseLevel(conf.Log.Level))
	appLog.EnableFile(appLog.FileOptions{
		Path:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
	})
	defer appLog.Close()

	eng := recur.New()
	loc := conf.Location()

	switch {
	case flags.parse != "":
		enc, ok := eng.ParseNaturalLanguage(flags.parse, loc)
		if !ok {
			fmt.Fprintf(os.Stderr, "could not understand %q\n", flags.parse)
			os.Exit(1)
		}
		fmt.Println(enc)
		printDescription(os.Stdout, eng, enc, loc)
		return
	case flags.describe != "":
		if err := recur.Validate(flags.describe); err != nil {
			fmt.Fprintf(os.Stderr, "invalid encoding: %v\n", err)
			os.Exit(1)
		}
		printDescription(os.Stdout, eng, flags.describe, loc)
		return
	}

	appLog.Info("taskrrule starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"feed_count", len(conf.Feeds),
		"once", flags.once,
	)

	feeds := make([]ics.Feed, 0, len(conf.Feeds))
	for _, f := range conf.Feeds {
		feeds = append(feeds, ics.Feed{ID: f.ID, URL: f.URL, Name: f.Name})
	}
	lib := ics.NewLibrary(ics.NewFetcher(conf.CacheDir, nil), feeds, loc)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	refresh := func() {
		rctx, rcancel := context.WithTimeout(ctx, time.Minute)
		defer rcancel()
		if err := lib.Refresh(rctx); err != nil {
			appLog.Error("feed refresh had failures", err)
		}
	}

	if flags.once {
		refresh()
		if err := printAgenda(os.Stdout, eng, lib, loc, conf.HorizonDays); err != nil {
			appLog.Error("agenda failed", err)
			os.Exit(1)
		}
		return
	}

	refresh()
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := web.NewServer(conf, eng, lib)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}
	appLog.Info("taskrrule exiting")
}

func printDescription(w io.Writer, eng *recur.Engine, enc string, loc *time.Location) {
	fmt.Fprintf(w, "repeat:    %s\n", recur.DisplayText(enc))
	if label, ok := eng.ScheduleLabel(enc, loc); ok {
		fmt.Fprintf(w, "schedule:  %s\n", label)
	}
	if next, ok := eng.NextDueDate(enc, loc); ok {
		fmt.Fprintf(w, "next due:  %s\n", next.Format(time.RFC1123))
	}
}

func printAgenda(w io.Writer, eng *recur.Engine, lib *ics.Library, loc *time.Location, days int) error {
	from := eng.Now(loc)
	res, err := ics.ExpandAgenda(eng, lib.Tasks(), ics.AgendaConfig{
		Location: loc,
		From:     from,
		To:       from.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}
	for _, o := range res.Occurrences {
		when := recur.FormatTaskDateLabel(o.Start, !o.AllDay)
		if o.Repeat != "" {
			fmt.Fprintf(w, "%-28s %s (%s)\n", when, o.Summary, o.Repeat)
		} else {
			fmt.Fprintf(w, "%-28s %s\n", when, o.Summary)
		}
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.timezone, "tz", "", "IANA timezone (overrides config if set)")
	flag.StringVar(&cfg.parse, "parse", "", "Parse natural-language text, print the encoding and exit")
	flag.StringVar(&cfg.describe, "describe", "", "Describe an encoding and exit")
	flag.BoolVar(&cfg.once, "once", false, "Refresh feeds once, print the agenda and exit")

	flag.Parse()

	return cfg
}
