package mktorrent

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/anacrolix/torrent/bencode"
)

// InfoDictionary describes the single file carried by a descriptor.
type InfoDictionary struct {
	PieceLength int64  `bencode:"piece length"`
	Length      int64  `bencode:"length"`
	Name        string `bencode:"name"`
	MD5Sum      string `bencode:"md5sum"`
	Pieces      []byte `bencode:"pieces"`
}

// NumPieces is the number of 20 byte digests held in Pieces.
func (info *InfoDictionary) NumPieces() int {
	return len(info.Pieces) / pieceHashSize
}

// PieceHash returns the SHA-1 of piece i.
func (info *InfoDictionary) PieceHash(i int) (h [20]byte) {
	copy(h[:], info.Pieces[i*pieceHashSize:(i+1)*pieceHashSize])
	return
}

// MetaInfo is the top level torrent descriptor.
type MetaInfo struct {
	Announce     string         `bencode:"announce"`
	AnnounceList [][]string     `bencode:"announce-list,omitempty"`
	CreationDate int64          `bencode:"creation date"`
	CreatedBy    string         `bencode:"created by"`
	Comment      string         `bencode:"comment,omitempty"`
	Info         InfoDictionary `bencode:"info"`
}

// Trackers flattens announce-list, or returns announce when there is none.
func (mi *MetaInfo) Trackers() []string {
	if len(mi.AnnounceList) == 0 {
		if mi.Announce == "" {
			return nil
		}
		return []string{mi.Announce}
	}
	var trs []string
	for _, tier := range mi.AnnounceList {
		trs = append(trs, tier...)
	}
	return trs
}

// InfoHash is the hex SHA-1 of the bencoded info dictionary.
func (mi *MetaInfo) InfoHash() (string, error) {
	b, err := bencode.Marshal(mi.Info)
	if err != nil {
		return "", encodingError("info hash", err)
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// BuildRequest is a validated request to describe one file.
type BuildRequest struct {
	Path     string
	Trackers []string
	Comment  string
}

// NewBuildRequest drops blank trackers and rejects a request without a
// path or without any tracker. Other trackers are kept byte for byte.
func NewBuildRequest(path string, trackers []string, comment string) (BuildRequest, error) {
	if path == "" {
		return BuildRequest{}, configError("build request", ErrEmptyPath)
	}
	trs := make([]string, 0, len(trackers))
	for _, tr := range trackers {
		if strings.TrimSpace(tr) != "" {
			trs = append(trs, tr)
		}
	}
	if len(trs) == 0 {
		return BuildRequest{}, configError("build request", ErrNoTrackers)
	}
	return BuildRequest{Path: path, Trackers: trs, Comment: comment}, nil
}
