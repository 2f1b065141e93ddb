package mktorrent

import (
	"os"
	"time"
)

// DefaultCreatedBy is recorded in "created by" unless the builder overrides it.
const DefaultCreatedBy = "simple-btclient"

// Logger is the reporting capability a Builder writes progress to.
type Logger interface {
	Printf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Builder turns a source file into a descriptor. It holds no per build
// state and may be reused.
type Builder struct {
	CreatedBy string
	log       Logger
	now       func() time.Time
}

func NewBuilder(log Logger) *Builder {
	if log == nil {
		log = nopLogger{}
	}
	return &Builder{
		CreatedBy: DefaultCreatedBy,
		log:       log,
		now:       time.Now,
	}
}

// Build reads req.Path fully and returns its descriptor.
func (b *Builder) Build(req BuildRequest) (*MetaInfo, error) {
	// requests may be built as literals, re-check before touching the disk
	req, err := NewBuildRequest(req.Path, req.Trackers, req.Comment)
	if err != nil {
		return nil, err
	}
	b.log.Printf("generating torrent content for [%s] trackers:%v", req.Path, req.Trackers)

	info, err := b.infoDictionary(req.Path)
	if err != nil {
		return nil, err
	}

	mi := &MetaInfo{
		Announce:     req.Trackers[0],
		CreationDate: b.now().Unix(),
		CreatedBy:    b.CreatedBy,
		Comment:      req.Comment,
		Info:         *info,
	}
	if len(req.Trackers) > 1 {
		mi.AnnounceList = make([][]string, len(req.Trackers))
		for i, tr := range req.Trackers {
			mi.AnnounceList[i] = []string{tr}
		}
	}
	return mi, nil
}

func (b *Builder) infoDictionary(path string) (*InfoDictionary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	size := int64(len(content))
	pieceLength, estimate, err := OptimalPieceSize(size)
	if err != nil {
		return nil, err
	}
	b.log.Printf("[%s] size:%d piece length:%d estimated pieces:%d", path, size, pieceLength, estimate)

	return &InfoDictionary{
		PieceLength: pieceLength,
		Length:      size,
		Name:        path,
		MD5Sum:      MD5Hex(content),
		Pieces:      HashPieces(content, pieceLength),
	}, nil
}

// WriteTorrentFile builds, encodes and writes the descriptor of req to
// dest. dest is left untouched when any step fails.
func (b *Builder) WriteTorrentFile(req BuildRequest, dest string) (*MetaInfo, error) {
	mi, err := b.Build(req)
	if err != nil {
		return nil, err
	}
	data, err := Encode(mi)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(data, dest); err != nil {
		return nil, err
	}
	b.log.Printf("torrent file written [%s] %d bytes", dest, len(data))
	return mi, nil
}
