package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boypt/simple-btclient/engine"
	"github.com/boypt/simple-btclient/logging"
	"github.com/boypt/simple-btclient/mktorrent"
)

func Test_progressLine(t *testing.T) {
	tests := []struct {
		st   engine.Status
		want string
	}{
		{engine.Status{}, "0.00% complete (down: 0 B/s up: 0 B/s peers: 0) queued"},
		{
			engine.Status{Progress: 0.5, DownloadRate: 2000, UploadRate: 1500000, Peers: 3, State: engine.Transferring},
			"50.00% complete (down: 2.0 kB/s up: 1.5 MB/s peers: 3) transferring",
		},
		{engine.Status{Progress: 1, State: engine.Finished}, "100.00% complete (down: 0 B/s up: 0 B/s peers: 0) finished"},
	}
	for _, tt := range tests {
		if got := progressLine(tt.st); got != tt.want {
			t.Errorf("progressLine() = %q, want %q", got, tt.want)
		}
	}
}

func Test_parseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1073741824", 1 << 30, false},
		{"700MB", 700 << 20, false},
		{" 4GB ", 4 << 30, false},
		{"big", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSize(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func Test_downloadSummary(t *testing.T) {
	st := engine.Status{
		Name:      "album",
		Size:      300,
		SeedRatio: 0.25,
		Files: []engine.File{
			{Path: "album/a.flac", Size: 100, Completed: 100, Percent: 100},
			{Path: "album/b.flac", Size: 200, Completed: 100, Percent: 50},
		},
	}
	want := "100.00%      100 B  album/a.flac\n" +
		" 50.00%      200 B  album/b.flac\n" +
		"album: 300 B, seed ratio 0.25\n"
	if got := downloadSummary(st); got != want {
		t.Errorf("downloadSummary() = %q, want %q", got, want)
	}
}

func Test_downloadFlags_apply(t *testing.T) {
	dest := t.TempDir()
	tests := []struct {
		name      string
		flags     downloadFlags
		base      engine.Config
		wantMode  engine.AllocationMode
		wantPorts [2]int
		wantErr   bool
	}{
		{"config kept", downloadFlags{}, engine.Config{AllocateStorage: true, PortStart: 1, PortEnd: 2}, engine.AllocateFull, [2]int{1, 2}, false},
		{"allocate", downloadFlags{Allocation: "allocate"}, engine.Config{}, engine.AllocateFull, [2]int{}, false},
		{"sparse overrides config", downloadFlags{Allocation: "sparse"}, engine.Config{AllocateStorage: true}, engine.AllocateSparse, [2]int{}, false},
		{"ports", downloadFlags{PortStart: 7000, PortEnd: 7010}, engine.Config{}, engine.AllocateSparse, [2]int{7000, 7010}, false},
		{"unknown mode", downloadFlags{Allocation: "thick"}, engine.Config{}, engine.AllocateSparse, [2]int{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := tt.base
			tt.flags.Dest = dest
			err := tt.flags.apply(&ec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if ec.Allocation() != tt.wantMode {
				t.Errorf("Allocation() = %v, want %v", ec.Allocation(), tt.wantMode)
			}
			if ec.PortStart != tt.wantPorts[0] || ec.PortEnd != tt.wantPorts[1] {
				t.Errorf("ports = %d-%d", ec.PortStart, ec.PortEnd)
			}
			if ec.DownloadDirectory != dest {
				t.Errorf("DownloadDirectory = %q, want %q", ec.DownloadDirectory, dest)
			}
		})
	}
}

func Test_pieceSizeTable(t *testing.T) {
	sizes := pieceSizeTable()
	if len(sizes) != 27 || sizes[0] != "1000" || sizes[9] != "1000000" || sizes[26] != "9000000000" {
		t.Fatalf("pieceSizeTable() = %v", sizes)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"1000", "1000\t32 KiB x 1"},
		{"9000000000", "9000000000\t4.0 MiB x 2146"},
	}
	for _, tt := range tests {
		got, err := pieceSizeLine(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("pieceSizeLine(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := pieceSizeLine("big"); err == nil {
		t.Errorf("pieceSizeLine(big) should fail")
	}
}

func Test_app_builder(t *testing.T) {
	if got, want := createdBy(), "simple-btclient/"+VERSION; got != want {
		t.Errorf("createdBy() = %q, want %q", got, want)
	}
	src := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newMktorrentCmd(&app{log: logging.Discard()})
	if c.Comment != "Created by simple-btclient" {
		t.Errorf("default Comment = %q", c.Comment)
	}
	req, err := mktorrent.NewBuildRequest(src, []string{"http://a/announce"}, c.Comment)
	if err != nil {
		t.Fatal(err)
	}
	mi, err := c.app.builder().Build(req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if mi.CreatedBy != createdBy() {
		t.Errorf("CreatedBy = %q, want %q", mi.CreatedBy, createdBy())
	}
	if mi.Comment != defaultComment {
		t.Errorf("Comment = %q, want %q", mi.Comment, defaultComment)
	}
}
