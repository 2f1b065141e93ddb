package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpillora/opts"

	"github.com/boypt/simple-btclient/config"
	"github.com/boypt/simple-btclient/logging"
)

var VERSION = "0.0.0-src" //set with ldflags

type app struct {
	ConfigPath string `opts:"name=config, help=Configuration file path"`
	LogLevel   string `opts:"help=Log level: notset|debug|info|warning|error|critical"`
	LogFile    string `opts:"help=Log file (default /tmp/simple-btclient.log)"`
	Foreground bool   `opts:"help=Also log to stdout"`

	conf   *config.Config
	log    *logging.Logger
	closer io.Closer
}

// setup loads the configuration and opens the log, flags win over the file.
func (a *app) setup() error {
	boot := logging.New(os.Stderr, logging.LevelWarn)
	c, err := config.InitConf(a.ConfigPath, boot)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		c.Log.Level = a.LogLevel
	}
	if a.LogFile != "" {
		c.Log.File = a.LogFile
	}
	if a.Foreground {
		c.Log.Foreground = true
	}
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	l, closer, err := logging.Open(c.Log.File, level, c.Log.Foreground)
	if err != nil {
		return err
	}
	a.conf, a.log, a.closer = c, l, closer
	return nil
}

func (a *app) teardown() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// run sets the app up and calls fn with a context cancelled on SIGINT/SIGTERM.
func (a *app) run(fn func(ctx context.Context) error) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.teardown()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fn(ctx); err != nil {
		a.log.Errorf("%s", err)
		return err
	}
	return nil
}

func main() {
	a := &app{}
	o := opts.New(a).
		Name("simple-btclient").
		Version(VERSION).
		Summary("Build, publish and fetch BitTorrent descriptors").
		AddCommand(opts.New(newMktorrentCmd(a)).Name("mktorrent").
			Summary("Build a .torrent descriptor for a file")).
		AddCommand(opts.New(&dnldtorrentCmd{app: a}).Name("dnldtorrent").
			Summary("Download the content of a .torrent file")).
		AddCommand(opts.New(&dnldfromkeyCmd{app: a}).Name("dnldfromkey").
			Summary("Pull a descriptor from the index by key and download it")).
		AddCommand(opts.New(&pushtorrentCmd{app: a}).Name("pushtorrent").
			Summary("Push a .torrent file to the index under a key")).
		AddCommand(opts.New(&autoindexerCmd{app: a}).Name("autoindexer").
			Summary("Watch directories and publish a descriptor for every written file")).
		AddCommand(opts.New(&serveCmd{app: a}).Name("serve").
			Summary("Run the descriptor index server")).
		AddCommand(opts.New(&inspectCmd{}).Name("inspect").
			Summary("Print the content of a .torrent file")).
		AddCommand(opts.New(&piecesizeCmd{}).Name("piecesize").
			Summary("Print the piece length chosen for content sizes"))
	o.Parse().RunFatal()
}
