package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	eglog "github.com/anacrolix/log"
	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"github.com/boypt/simple-btclient/logging"
)

// StatusInterval is how often Download refreshes and reports status.
var StatusInterval = time.Second

//the Engine transfer engine, backed by anacrolix/torrent
type Engine struct {
	mut    sync.Mutex
	client *torrent.Client
	config Config
	port   int
	ts     map[string]*Torrent
	log    *logging.Logger
}

func New(log *logging.Logger) *Engine {
	return &Engine{
		ts:  map[string]*Torrent{},
		log: log.Child("engine"),
	}
}

// ListenPort is the port the client bound, zero before Configure.
func (e *Engine) ListenPort() int {
	e.mut.Lock()
	defer e.mut.Unlock()
	return e.port
}

func (e *Engine) clientConfig(c *Config, port int) *torrent.ClientConfig {
	tc := torrent.NewDefaultClientConfig()
	tc.ListenPort = port
	tc.DataDir = c.DownloadDirectory
	tc.Debug = c.EngineDebug
	if c.MuteEngineLog {
		tc.Logger = eglog.Discard
	}
	tc.NoUpload = !c.EnableUpload
	tc.Seed = c.EnableSeeding
	tc.UploadRateLimiter = c.UploadLimiter(e.log)
	tc.DownloadRateLimiter = c.DownloadLimiter(e.log)
	tc.DisableTrackers = c.DisableTrackers
	tc.DisableIPv6 = c.DisableIPv6
	tc.NoDHT = c.NoDHT
	return tc
}

// Configure (re)creates the client, binding the first free port of the
// configured range.
func (e *Engine) Configure(c Config) error {
	ports, err := c.Ports()
	if err != nil {
		return err
	}
	if c.DownloadDirectory != "" {
		if err := mkdir(c.DownloadDirectory); err != nil {
			return err
		}
	}
	e.Close()

	var client *torrent.Client
	for _, port := range ports {
		client, err = torrent.NewClient(e.clientConfig(&c, port))
		if err == nil {
			e.log.Printf("listening on port %d", port)
			e.mut.Lock()
			e.config = c
			e.client = client
			e.port = port
			e.mut.Unlock()
			return nil
		}
		e.log.Debugf("port %d unavailable: %v", port, err)
	}
	return fmt.Errorf("no usable port in %d-%d: %w", ports[0], ports[len(ports)-1], err)
}

// AddTorrent registers mi with storage rooted at destDir. The transfer
// starts with StartTorrent.
func (e *Engine) AddTorrent(mi *metainfo.MetaInfo, destDir string, mode AllocationMode) (*Torrent, error) {
	e.mut.Lock()
	client := e.client
	e.mut.Unlock()
	if client == nil {
		return nil, fmt.Errorf("engine not configured")
	}
	if err := mkdir(destDir); err != nil {
		return nil, err
	}
	spec := torrent.TorrentSpecFromMetaInfo(mi)
	spec.Storage = storage.NewFile(destDir)
	tt, _, err := client.AddTorrentSpec(spec)
	if err != nil {
		return nil, err
	}

	e.mut.Lock()
	t := e.upsertTorrent(tt)
	e.mut.Unlock()
	t.Lock()
	t.DestDir = destDir
	t.Mode = mode
	t.Unlock()
	e.log.Printf("added %s [%s] to %s (%s)", t.InfoHash, t.Name, destDir, mode)
	return t, nil
}

// StartTorrent waits for the info dictionary, lays out storage, verifies
// any data already present and starts transferring every piece.
func (e *Engine) StartTorrent(ctx context.Context, t *Torrent) error {
	select {
	case <-t.t.GotInfo():
	case <-ctx.Done():
		return ctx.Err()
	}
	t.Update(t.t)

	existing := false
	for _, f := range t.t.Files() {
		if st, err := os.Stat(t.filePath(f)); err == nil && st.Size() > 0 {
			existing = true
			break
		}
	}

	if t.Mode == AllocateFull {
		t.setPhase(true, false)
		for _, f := range t.t.Files() {
			p := t.filePath(f)
			if err := mkdir(filepath.Dir(p)); err != nil {
				t.setPhase(false, false)
				return err
			}
			if err := preallocate(p, f.Length()); err != nil {
				t.setPhase(false, false)
				return fmt.Errorf("allocate %s: %w", p, err)
			}
		}
		t.setPhase(false, false)
	}

	if existing {
		t.setPhase(false, true)
		e.log.Printf("verifying existing data of %s", t.InfoHash)
		t.t.VerifyData()
		t.setPhase(false, false)
	}

	t.Lock()
	if t.Started {
		t.Unlock()
		return fmt.Errorf("Already started")
	}
	t.Started = true
	t.StartedAt = time.Now()
	t.Unlock()
	t.t.DownloadAll()
	e.log.Printf("starting [%s]", t.Name)
	return nil
}

func (t *Torrent) filePath(f *torrent.File) string {
	return filepath.Join(t.DestDir, filepath.FromSlash(f.Path()))
}

// Download adds mi, starts it and blocks until every piece is present or
// ctx is done. report, when set, gets a status every StatusInterval.
func (e *Engine) Download(ctx context.Context, mi *metainfo.MetaInfo, destDir string, mode AllocationMode, report func(Status)) error {
	t, err := e.AddTorrent(mi, destDir, mode)
	if err != nil {
		return err
	}
	if err := e.StartTorrent(ctx, t); err != nil {
		return err
	}

	tk := time.NewTicker(StatusInterval)
	defer tk.Stop()
	for {
		t.Update(t.t)
		st := t.Status()
		if report != nil {
			report(st)
		}
		if st.Complete() {
			e.log.Printf("completed [%s] in %s", st.Name, t.elapsed().Round(time.Second))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
		}
	}
}

//GetTorrents moves torrents out of the anacrolix/torrent
//and into the local cache
func (e *Engine) GetTorrents() map[string]*Torrent {
	e.mut.Lock()
	defer e.mut.Unlock()

	if e.client == nil {
		return nil
	}
	for _, tt := range e.client.Torrents() {
		e.upsertTorrent(tt)
	}
	return e.ts
}

func (e *Engine) upsertTorrent(tt *torrent.Torrent) *Torrent {
	ih := tt.InfoHash().HexString()
	torrent, ok := e.ts[ih]
	if !ok {
		torrent = &Torrent{
			InfoHash: ih,
		}
		e.ts[ih] = torrent
	}
	//update torrent fields using underlying torrent
	torrent.Update(tt)
	return torrent
}

func (e *Engine) getTorrent(infohash string) (*Torrent, error) {
	ih := metainfo.NewHashFromHex(infohash)
	t, ok := e.ts[ih.HexString()]
	if !ok {
		return t, fmt.Errorf("Missing torrent %x", ih)
	}
	return t, nil
}

// DropTorrent stops and forgets a torrent. Downloaded data stays on disk.
func (e *Engine) DropTorrent(infohash string) error {
	e.mut.Lock()
	defer e.mut.Unlock()
	t, err := e.getTorrent(infohash)
	if err != nil {
		return err
	}
	delete(e.ts, t.InfoHash)
	if t.t != nil {
		t.t.Drop()
	}
	return nil
}

func (e *Engine) Close() {
	e.mut.Lock()
	defer e.mut.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
		e.port = 0
		e.ts = map[string]*Torrent{}
	}
}
