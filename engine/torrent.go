package engine

import (
	"sync"
	"time"

	"github.com/anacrolix/torrent"
)

// State is the coarse lifecycle of a torrent in the engine.
type State uint8

const (
	Queued State = iota
	Checking
	FetchingMetadata
	Transferring
	Finished
	Seeding
	Allocating
	VerifyingResumeData
)

var stateNames = [...]string{
	Queued:              "queued",
	Checking:            "checking",
	FetchingMetadata:    "fetching metadata",
	Transferring:        "transferring",
	Finished:            "finished",
	Seeding:             "seeding",
	Allocating:          "allocating",
	VerifyingResumeData: "verifying resume data",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Status is a point in time view of one torrent.
type Status struct {
	InfoHash     string
	Name         string
	Size         int64
	Completed    int64
	Progress     float64 // 0..1
	DownloadRate float32 // bytes/s
	UploadRate   float32 // bytes/s
	Peers        int
	State        State
	SeedRatio    float32 // uploaded/downloaded
	Files        []File
}

// Complete is true once every byte is present.
func (s Status) Complete() bool {
	return s.State == Finished || s.State == Seeding
}

type Torrent struct {
	// put at first postition to prevent memorty align issues.
	Stats torrent.TorrentStats

	//anacrolix/torrent
	InfoHash   string
	Name       string
	Loaded     bool
	Downloaded int64
	Uploaded   int64
	Size       int64
	Files      []*File

	//simple-btclient
	DestDir      string
	Mode         AllocationMode
	Started      bool
	Done         bool
	IsSeeding    bool
	Checking     bool
	Percent      float32
	DownloadRate float32
	UploadRate   float32
	SeedRatio    float32
	StartedAt    time.Time
	t            *torrent.Torrent
	allocating   bool
	verifying    bool
	updatedAt    time.Time
	sync.Mutex
}

type File struct {
	//anacrolix/torrent
	Path      string
	Size      int64
	Completed int64
	Done      bool
	Percent   float32
}

// Update retrive info from torrent.Torrent
func (torrent *Torrent) Update(t *torrent.Torrent) {
	torrent.Lock()
	defer torrent.Unlock()

	torrent.t = t
	if t.Info() != nil {
		torrent.Loaded = true
		torrent.updateStatus()
		torrent.updateConnStat()
	}
	torrent.Name = t.Name()
}

func (torrent *Torrent) updateConnStat() {
	torrent.Stats = torrent.t.Stats()

	// calculate ratio
	bRead := torrent.Stats.BytesReadData.Int64()
	bWrite := torrent.Stats.BytesWrittenData.Int64()
	if bRead > 0 {
		torrent.SeedRatio = float32(bWrite) / float32(bRead)
	}

	now := time.Now()
	bytes := torrent.t.BytesCompleted()
	ulbytes := torrent.Stats.BytesWrittenData.Int64()

	if !torrent.updatedAt.IsZero() {
		// calculate rate
		dtinv := float32(time.Second) / float32(now.Sub(torrent.updatedAt))

		dldb := float32(bytes - torrent.Downloaded)
		torrent.DownloadRate = dldb * dtinv

		uldb := float32(ulbytes - torrent.Uploaded)
		torrent.UploadRate = uldb * dtinv
	}

	torrent.Downloaded = bytes
	torrent.Uploaded = ulbytes
	torrent.updatedAt = now
}

func (torrent *Torrent) updateStatus() {
	tfiles := torrent.t.Files()
	if len(tfiles) > 0 && torrent.Files == nil {
		torrent.Files = make([]*File, len(tfiles))
	}
	//merge in files
	for i, f := range tfiles {
		file := torrent.Files[i]
		if file == nil {
			file = &File{Path: f.Path()}
			torrent.Files[i] = file
		}
		file.Size = f.Length()
		file.Completed = f.BytesCompleted()
		file.Percent = percent(file.Completed, file.Size)
		file.Done = (file.Completed == file.Size)
	}

	torrent.Size = torrent.t.Length()
	torrent.Percent = percent(torrent.t.BytesCompleted(), torrent.Size)
	torrent.Done = (torrent.t.BytesMissing() == 0)
	torrent.IsSeeding = torrent.t.Seeding() && torrent.Done

	torrent.Checking = false
	for _, run := range torrent.t.PieceStateRuns() {
		if run.Checking {
			torrent.Checking = true
			break
		}
	}
}

func (torrent *Torrent) setPhase(allocating, verifying bool) {
	torrent.Lock()
	defer torrent.Unlock()
	torrent.allocating = allocating
	torrent.verifying = verifying
}

func (torrent *Torrent) state() State {
	switch {
	case torrent.allocating:
		return Allocating
	case torrent.verifying:
		return VerifyingResumeData
	case !torrent.Loaded:
		return FetchingMetadata
	case torrent.Done && torrent.IsSeeding:
		return Seeding
	case torrent.Done:
		return Finished
	case !torrent.Started:
		return Queued
	case torrent.Checking:
		return Checking
	}
	return Transferring
}

// Status snapshots the last Update.
func (torrent *Torrent) Status() Status {
	torrent.Lock()
	defer torrent.Unlock()
	st := Status{
		InfoHash:     torrent.InfoHash,
		Name:         torrent.Name,
		Size:         torrent.Size,
		Completed:    torrent.Downloaded,
		DownloadRate: torrent.DownloadRate,
		UploadRate:   torrent.UploadRate,
		Peers:        torrent.Stats.ActivePeers,
		State:        torrent.state(),
		SeedRatio:    torrent.SeedRatio,
	}
	if len(torrent.Files) > 0 {
		st.Files = make([]File, len(torrent.Files))
		for i, f := range torrent.Files {
			st.Files[i] = *f
		}
	}
	if torrent.Size > 0 {
		st.Progress = float64(torrent.Downloaded) / float64(torrent.Size)
	} else if torrent.Done {
		st.Progress = 1
	}
	return st
}

// elapsed is the time since StartTorrent, zero before it.
func (torrent *Torrent) elapsed() time.Duration {
	torrent.Lock()
	defer torrent.Unlock()
	if torrent.StartedAt.IsZero() {
		return 0
	}
	return time.Since(torrent.StartedAt)
}

func percent(n, total int64) float32 {
	if total == 0 {
		return float32(0)
	}
	return float32(int(float64(10000)*(float64(n)/float64(total)))) / 100
}
