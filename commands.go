package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/c2h5oh/datasize"
	"github.com/dustin/go-humanize"

	"github.com/boypt/simple-btclient/engine"
	"github.com/boypt/simple-btclient/indexer"
	"github.com/boypt/simple-btclient/mktorrent"
	"github.com/boypt/simple-btclient/publish"
	"github.com/boypt/simple-btclient/server"
)

// defaultComment is what mktorrent stores unless --comment is given.
const defaultComment = "Created by simple-btclient"

// createdBy is the "created by" value of every descriptor this binary writes.
func createdBy() string {
	return mktorrent.DefaultCreatedBy + "/" + VERSION
}

func (a *app) builder() *mktorrent.Builder {
	b := mktorrent.NewBuilder(a.log)
	b.CreatedBy = createdBy()
	return b
}

type mktorrentCmd struct {
	Src      string   `opts:"mode=arg, help=File to describe"`
	Dest     string   `opts:"mode=arg, help=Where to write the .torrent file"`
	Trackers []string `opts:"mode=arg, help=Announce URLs (default from config)"`
	Comment  string   `opts:"help=Comment stored in the descriptor"`

	app *app
}

func newMktorrentCmd(a *app) *mktorrentCmd {
	return &mktorrentCmd{Comment: defaultComment, app: a}
}

func (c *mktorrentCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		trackers := c.Trackers
		if len(trackers) == 0 {
			trackers = c.app.conf.Indexer.Trackers
		}
		req, err := mktorrent.NewBuildRequest(c.Src, trackers, c.Comment)
		if err != nil {
			return err
		}
		mi, err := c.app.builder().WriteTorrentFile(req, c.Dest)
		if err != nil {
			return err
		}
		hash, _ := mi.InfoHash()
		fmt.Printf("%s %s\n", hash, c.Dest)
		return nil
	})
}

type downloadFlags struct {
	Dest       string `opts:"help=Download directory (default from config)"`
	PortStart  int    `opts:"help=First listen port to try"`
	PortEnd    int    `opts:"help=Last listen port to try"`
	Allocation string `opts:"help=Storage allocation: sparse|allocate (default from config)"`
}

// apply overrides the engine section with the flags that were set.
func (d downloadFlags) apply(ec *engine.Config) error {
	if d.Dest != "" {
		ec.DownloadDirectory = d.Dest
	}
	if d.PortStart > 0 {
		ec.PortStart = d.PortStart
		ec.PortEnd = d.PortEnd
	}
	if d.Allocation != "" {
		m, err := engine.ParseAllocationMode(d.Allocation)
		if err != nil {
			return err
		}
		ec.AllocateStorage = m == engine.AllocateFull
	}
	_, err := ec.NormlizeConfigDir()
	return err
}

// download fetches mi with an engine configured from the config file and d.
func (a *app) download(ctx context.Context, d downloadFlags, mi *metainfo.MetaInfo) error {
	ec := a.conf.Engine
	if err := d.apply(&ec); err != nil {
		return err
	}

	e := engine.New(a.log)
	if err := e.Configure(ec); err != nil {
		return err
	}
	defer e.Close()
	a.log.Printf("listening on port %d, saving into %s (%s)", e.ListenPort(), ec.DownloadDirectory, ec.Allocation())

	var last engine.Status
	err := e.Download(ctx, mi, ec.DownloadDirectory, ec.Allocation(), func(st engine.Status) {
		last = st
		fmt.Println(progressLine(st))
	})
	if err != nil {
		return err
	}
	fmt.Print(downloadSummary(last))
	return nil
}

func progressLine(st engine.Status) string {
	return fmt.Sprintf("%.2f%% complete (down: %s/s up: %s/s peers: %d) %s",
		st.Progress*100,
		humanize.Bytes(uint64(st.DownloadRate)),
		humanize.Bytes(uint64(st.UploadRate)),
		st.Peers, st.State)
}

// downloadSummary lists every file of a finished download and the seed ratio.
func downloadSummary(st engine.Status) string {
	var b strings.Builder
	for _, f := range st.Files {
		fmt.Fprintf(&b, "%6.2f%% %10s  %s\n", f.Percent, humanize.Bytes(uint64(f.Size)), f.Path)
	}
	fmt.Fprintf(&b, "%s: %s, seed ratio %.2f\n", st.Name, humanize.Bytes(uint64(st.Size)), st.SeedRatio)
	return b.String()
}

type dnldtorrentCmd struct {
	Torrent  string        `opts:"mode=arg, help=.torrent file to download"`
	Download downloadFlags `opts:"mode=embedded"`

	app *app
}

func (c *dnldtorrentCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		mi, err := metainfo.LoadFromFile(c.Torrent)
		if err != nil {
			return fmt.Errorf("load %s: %w", c.Torrent, err)
		}
		return c.app.download(ctx, c.Download, mi)
	})
}

type dnldfromkeyCmd struct {
	Key      string        `opts:"mode=arg, help=Key the descriptor was published under"`
	PullURL  string        `opts:"help=Index pull URL (default from config)"`
	Download downloadFlags `opts:"mode=embedded"`

	app *app
}

func (c *dnldfromkeyCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		client := c.app.publishClient("", c.PullURL)
		data, err := client.Pull(ctx, c.Key)
		if err != nil {
			return err
		}
		mi, err := metainfo.Load(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("descriptor %s: %w", c.Key, err)
		}
		c.app.log.Printf("pulled %s (%d bytes)", c.Key, len(data))
		return c.app.download(ctx, c.Download, mi)
	})
}

func (a *app) publishClient(pushURL, pullURL string) *publish.Client {
	if pushURL == "" {
		pushURL = a.conf.Index.PushURL
	}
	if pullURL == "" {
		pullURL = a.conf.Index.PullURL
	}
	return publish.NewClient(pushURL, pullURL)
}

type pushtorrentCmd struct {
	Torrent string `opts:"mode=arg, help=.torrent file to publish"`
	Key     string `opts:"mode=arg, help=Key to publish under"`
	PushURL string `opts:"help=Index push URL (default from config)"`

	app *app
}

func (c *pushtorrentCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		mi, err := mktorrent.LoadFile(c.Torrent)
		if err != nil {
			return err
		}
		if err := c.app.publishClient(c.PushURL, "").PushFile(ctx, c.Key, c.Torrent); err != nil {
			return err
		}
		hash, _ := mi.InfoHash()
		c.app.log.Printf("pushed %s as %s", hash, c.Key)
		return nil
	})
}

type autoindexerCmd struct {
	Paths   []string      `opts:"mode=arg, help=Directories to watch (default from config)"`
	Tracker []string      `opts:"help=Announce URL and repeatable (default from config)"`
	Comment string        `opts:"help=Comment stored in every descriptor"`
	Settle  time.Duration `opts:"help=Quiet time before a written file is indexed"`
	PushURL string        `opts:"help=Index push URL (default from config)"`

	app *app
}

func (c *autoindexerCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		ic := c.app.conf.Indexer
		if len(c.Paths) > 0 {
			ic.WatchPaths = c.Paths
		}
		if len(c.Tracker) > 0 {
			ic.Trackers = c.Tracker
		}
		if c.Comment != "" {
			ic.Comment = c.Comment
		}
		if c.Settle > 0 {
			ic.Settle = c.Settle
		}
		if len(ic.Trackers) == 0 {
			return mktorrent.ErrNoTrackers
		}
		opts, err := ic.Options()
		if err != nil {
			return err
		}
		ix := indexer.New(c.app.builder(), c.app.publishClient(c.PushURL, ""),
			ic.Trackers, ic.Comment, c.app.log, opts...)
		c.app.log.Printf("watching %s", strings.Join(ic.WatchPaths, ", "))
		return ix.Watch(ctx, ic.WatchPaths)
	})
}

type serveCmd struct {
	Listen     string `opts:"help=Listening address (default from config)"`
	DBPath     string `opts:"help=Database file (default from config)"`
	Auth       string `opts:"help=Optional basic auth in form 'user:password', env=AUTH"`
	RequestLog bool   `opts:"help=Enable request logging"`

	app *app
}

func (c *serveCmd) Run() error {
	return c.app.run(func(ctx context.Context) error {
		sc := c.app.conf.Index.Server()
		if c.Listen != "" {
			sc.Listen = c.Listen
		}
		if c.DBPath != "" {
			sc.DBPath = c.DBPath
		}
		if c.Auth != "" {
			sc.Auth = c.Auth
		}
		if c.RequestLog {
			sc.Log = true
		}
		s, err := server.New(sc, VERSION, c.app.log)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Run(ctx)
	})
}

type inspectCmd struct {
	Torrent string `opts:"mode=arg, help=.torrent file to print"`
}

func (c *inspectCmd) Run() error {
	mi, err := mktorrent.LoadFile(c.Torrent)
	if err != nil {
		return err
	}
	hash, err := mi.InfoHash()
	if err != nil {
		return err
	}
	fmt.Printf("name:          %s\n", mi.Info.Name)
	fmt.Printf("length:        %s (%d bytes)\n", humanize.Bytes(uint64(mi.Info.Length)), mi.Info.Length)
	fmt.Printf("piece length:  %s\n", humanize.Bytes(uint64(mi.Info.PieceLength)))
	fmt.Printf("pieces:        %d\n", mi.Info.NumPieces())
	fmt.Printf("md5sum:        %s\n", mi.Info.MD5Sum)
	fmt.Printf("info hash:     %s\n", hash)
	for i, tr := range mi.Trackers() {
		fmt.Printf("tracker %d:     %s\n", i, tr)
	}
	if mi.Comment != "" {
		fmt.Printf("comment:       %s\n", mi.Comment)
	}
	fmt.Printf("created by:    %s\n", mi.CreatedBy)
	fmt.Printf("creation date: %s\n", time.Unix(mi.CreationDate, 0).Format(time.RFC3339))

	if ami, err := metainfo.LoadFromFile(c.Torrent); err == nil {
		if info, err := ami.UnmarshalInfo(); err == nil {
			fmt.Printf("magnet:        %s\n", ami.Magnet(nil, &info).String())
		}
	}
	return nil
}

type piecesizeCmd struct {
	Sizes []string `opts:"mode=arg, help=Content sizes such as 700MB or 1073741824 (default a 1kB to 9GB table)"`
}

func (c *piecesizeCmd) Run() error {
	sizes := c.Sizes
	if len(sizes) == 0 {
		sizes = pieceSizeTable()
	}
	for _, s := range sizes {
		line, err := pieceSizeLine(s)
		if err != nil {
			return err
		}
		fmt.Println(line)
	}
	return nil
}

// pieceSizeTable is 1..9 of each decimal kB, MB and GB.
func pieceSizeTable() []string {
	var sizes []string
	for _, unit := range []int64{1e3, 1e6, 1e9} {
		for i := int64(1); i < 10; i++ {
			sizes = append(sizes, strconv.FormatInt(i*unit, 10))
		}
	}
	return sizes
}

func pieceSizeLine(s string) (string, error) {
	size, err := parseSize(s)
	if err != nil {
		return "", err
	}
	pl, n, err := mktorrent.OptimalPieceSize(size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\t%s x %d", s, humanize.IBytes(uint64(pl)), n), nil
}

func parseSize(s string) (int64, error) {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(v.Bytes()), nil
}
