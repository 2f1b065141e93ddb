package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/boypt/simple-btclient/engine"
	"github.com/boypt/simple-btclient/logging"
)

func Test_InitConf_defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	c, err := InitConf(path, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if c.Path() != path {
		t.Errorf("Path() = %q, want %q", c.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
	if !filepath.IsAbs(c.Engine.DownloadDirectory) {
		t.Errorf("DownloadDirectory %q not normalized", c.Engine.DownloadDirectory)
	}
	if c.Engine.PortStart != engine.DefaultPortStart || c.Engine.PortEnd != engine.DefaultPortEnd {
		t.Errorf("ports = %d-%d", c.Engine.PortStart, c.Engine.PortEnd)
	}
	if c.Indexer.Settle != 2*time.Second || c.Indexer.MaxFileSize != "4GB" {
		t.Errorf("indexer = %+v", c.Indexer)
	}

	// the written file reads back to the same values
	again, err := InitConf(path, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c, again) {
		t.Errorf("reloaded config differs:\n%+v\n%+v", c, again)
	}
}

func Test_InitConf_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	data := `
Log:
  Level: debug
Engine:
  DownloadDirectory: ` + dir + `
  PortStart: 7000
  PortEnd: 7010
  AllocateStorage: true
Index:
  PushURL: http://index.example/push
Indexer:
  WatchPaths: [/srv/a, /srv/b]
  Trackers:
    - http://t1.example/announce
    - http://t2.example/announce
  Settle: 5s
  MaxFileSize: 1GB
`
	os.WriteFile(path, []byte(data), 0o644)
	c, err := InitConf(path, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if c.Log.Level != "debug" || c.Engine.PortStart != 7000 || c.Engine.Allocation() != engine.AllocateFull {
		t.Errorf("config = %+v", c)
	}
	if c.Index.PushURL != "http://index.example/push" || c.Index.PullURL != "http://localhost:3000/pull" {
		t.Errorf("index = %+v", c.Index)
	}
	if !reflect.DeepEqual(c.Indexer.WatchPaths, []string{"/srv/a", "/srv/b"}) || len(c.Indexer.Trackers) != 2 {
		t.Errorf("indexer = %+v", c.Indexer)
	}
	if c.Indexer.Settle != 5*time.Second {
		t.Errorf("Settle = %v", c.Indexer.Settle)
	}
	opts, err := c.Indexer.Options()
	if err != nil || len(opts) != 3 {
		t.Errorf("Options() = %d options, %v", len(opts), err)
	}
	if sc := c.Index.Server(); sc.Listen != ":3000" || sc.MaxSize != "32MB" {
		t.Errorf("Server() = %+v", sc)
	}
}

func Test_IndexerConfig_Options_invalid(t *testing.T) {
	c := IndexerConfig{MaxFileSize: "huge"}
	if _, err := c.Options(); err == nil {
		t.Errorf("Options() with invalid size should fail")
	}
}
