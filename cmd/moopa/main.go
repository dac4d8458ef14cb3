package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ani-Moopa/moopa-resolver/internal/config"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
	"github.com/Ani-Moopa/moopa-resolver/internal/version"
	"github.com/Ani-Moopa/moopa-resolver/pkg/moopa"
)

// app carries what every subcommand needs
type app struct {
	cfg    *config.Config
	client *moopa.Client
	out    io.Writer
	json   bool
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"search":   runSearch,
	"episodes": runEpisodes,
	"source":   runSource,
	"watch":    runWatch,
	"manga":    runManga,
	"chapters": runChapters,
	"pages":    runPages,
	"mappings": runMappings,
	"serve":    runServe,
}

func main() {
	startAll := time.Now()

	fs := flag.NewFlagSet("moopa", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFlag := fs.String("config", "", "config file")
	envFlag := fs.String("env", "", "env file")
	debugFlag := fs.Bool("debug", false, "enable debug mode")
	jsonFlag := fs.Bool("json", false, "print JSON")
	perfFlag := fs.Bool("perf", false, "print timing report")
	versionFlag := fs.Bool("version", false, "show version information")
	helpFlag := fs.Bool("help", false, "show help message")
	altHelpFlag := fs.Bool("h", false, "show help message")

	if version.HasVersionArg() {
		version.ShowVersion(os.Stdout)
		return
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		util.ShowBeautifulHelp(os.Stderr)
		os.Exit(2)
	}
	if *versionFlag {
		version.ShowVersion(os.Stdout)
		return
	}
	if *helpFlag || *altHelpFlag || fs.NArg() == 0 {
		util.ShowBeautifulHelp(os.Stdout)
		return
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFlag, EnvFile: *envFlag})
	if err != nil {
		util.SetDebugMode(*debugFlag)
		fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		os.Exit(1)
	}

	util.SetDebugMode(*debugFlag || cfg.Debug)
	util.InitLogger()
	util.PerfEnabled = *perfFlag

	name, args := fs.Arg(0), fs.Args()[1:]
	if name == "help" {
		util.ShowBeautifulHelp(os.Stdout)
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintln(os.Stderr, util.ErrorHandler(fmt.Errorf("unknown command %q", name)))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(cfg)
	a := &app{cfg: cfg, client: client, out: os.Stdout, json: *jsonFlag}
	util.Debug("Starting", "version", version.Version, "command", name, "boot", time.Since(startAll))

	err = run(ctx, a, args)
	if cerr := client.Close(); cerr != nil {
		util.Warn("Closing mapping store", "error", cerr)
	}
	if util.PerfEnabled {
		util.GetPerfTracker().WriteReport(os.Stderr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		os.Exit(1)
	}
}

// newClient maps the configuration onto client options
func newClient(cfg *config.Config) *moopa.Client {
	opts := []moopa.Option{
		moopa.WithHTTPClient(util.NewHTTPClient(cfg.HTTP.Timeout)),
		moopa.WithTimeout(cfg.RequestTimeout),
		moopa.WithSimilarityThreshold(cfg.Matcher.SimilarityThreshold),
		moopa.WithRelayURL(cfg.Extractor.RelayURL),
		moopa.WithAniListURL(cfg.AniList.URL),
		moopa.WithProviderURLs(moopa.ProviderURLs{
			HiAnime:      cfg.Providers.HiAnime.BaseURL,
			AniCrushSite: cfg.Providers.AniCrush.SiteURL,
			AniCrushAPI:  cfg.Providers.AniCrush.APIURL,
			ComixBase:    cfg.Providers.Comix.BaseURL,
			ComixAPI:     cfg.Providers.Comix.APIURL,
		}),
	}
	if cfg.Store.Path != "" {
		opts = append(opts, moopa.WithStorePath(cfg.Store.Path))
	}
	return moopa.NewClient(opts...)
}
