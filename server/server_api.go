package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/boypt/simple-btclient/common"
	"github.com/boypt/simple-btclient/publish"
)

const (
	defaultMaxSize = 32 << 20
	torrentMIME    = "application/x-bittorrent"
)

func parseMaxSize(s string) (int64, error) {
	if s == "" {
		return defaultMaxSize, nil
	}
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid MaxSize %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid MaxSize %q", s)
	}
	return int64(v.Bytes()), nil
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxSize+1<<20)
	file, hdr, err := r.FormFile(publish.FormField)
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing %s: %s", publish.FormField, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxSize+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read upload: %s", err)
		return
	}
	if int64(len(data)) > s.maxSize {
		httpError(w, http.StatusRequestEntityTooLarge, "descriptor larger than %d bytes", s.maxSize)
		return
	}

	entry, err := describe(data)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid descriptor: %s", err)
		return
	}
	entry.Key = pushKey(r, hdr)

	if err := s.store.Put(entry, data); err != nil {
		s.log.Errorf("store %s: %s", entry.Key, err)
		httpError(w, http.StatusInternalServerError, "failed to store descriptor")
		return
	}
	entry.Size = len(data)
	s.log.Printf("stored %s (%s, %s)", entry.Key, entry.InfoHash, entry.Name)
	writeJSON(w, http.StatusOK, entry)
}

// pushKey prefers the explicit key field, then the part filename.
func pushKey(r *http.Request, hdr *multipart.FileHeader) string {
	if k := r.FormValue("key"); k != "" {
		return k
	}
	if hdr.Filename != "" {
		return hdr.Filename
	}
	return uuid.New().String()
}

func describe(data []byte) (Entry, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return Entry{}, err
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		InfoHash: mi.HashInfoBytes().HexString(),
		Name:     info.Name,
		Length:   info.TotalLength(),
		AddedAt:  time.Now(),
	}, nil
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		httpError(w, http.StatusBadRequest, "missing key")
		return
	}
	data, err := s.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		httpError(w, http.StatusNotFound, "%s: %s", key, err)
		return
	} else if err != nil {
		s.log.Errorf("load %s: %s", key, err)
		httpError(w, http.StatusInternalServerError, "failed to load descriptor")
		return
	}
	w.Header().Set("Content-Type", torrentMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key+".torrent"))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, err = w.Write(data)
	common.FancyHandleError(s.log, err)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		s.log.Errorf("list: %s", err)
		httpError(w, http.StatusInternalServerError, "failed to list descriptors")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	err := s.store.Delete(key)
	if errors.Is(err, ErrNotFound) {
		httpError(w, http.StatusNotFound, "%s: %s", key, err)
		return
	} else if err != nil {
		s.log.Errorf("delete %s: %s", key, err)
		httpError(w, http.StatusInternalServerError, "failed to delete descriptor")
		return
	}
	s.log.Printf("deleted %s", key)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.loadStats()
	writeJSON(w, http.StatusOK, st)
}

func httpError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	http.Error(w, fmt.Sprintf(format, args...), code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
