// Package server is the descriptor index: it accepts pushed .torrent files
// and serves them back by key.
package server

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/boypt/simple-btclient/logging"
	"github.com/boypt/simple-btclient/server/httpmiddleware"
	"github.com/gorilla/mux"
	"github.com/jpillora/cookieauth"
	"github.com/jpillora/requestlog"
	"golang.org/x/sync/errgroup"
)

// Config of the index server
type Config struct {
	Listen  string `yaml:"Listen"`
	DBPath  string `yaml:"DBPath"`
	Auth    string `yaml:"Auth"`
	Log     bool   `yaml:"Log"`
	MaxSize string `yaml:"MaxSize"`
}

type Server struct {
	config  Config
	maxSize int64
	store   *Store
	log     *logging.Logger
	started time.Time
	version string
}

func New(c Config, version string, log *logging.Logger) (*Server, error) {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.DBPath == "" {
		c.DBPath = "./index.db"
	}
	maxSize, err := parseMaxSize(c.MaxSize)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(c.DBPath)
	if err != nil {
		return nil, err
	}
	return &Server{
		config:  c,
		maxSize: maxSize,
		store:   store,
		log:     log.Child("index"),
		started: time.Now(),
		version: version,
	}, nil
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/push", s.handlePush).Methods(http.MethodPost)
	r.HandleFunc("/pull", s.handlePull).Methods(http.MethodGet, http.MethodHead)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/list", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/torrent/{key:.+}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

// Handler builds the full handler chain, from last to first.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.routes())
	//gzip
	gzipWrap, _ := gziphandler.NewGzipLevelAndMinSize(gzip.DefaultCompression, 0)
	h = gzipWrap(h)
	//auth
	if s.config.Auth != "" {
		user := s.config.Auth
		pass := ""
		if s := strings.SplitN(s.config.Auth, ":", 2); len(s) == 2 {
			user = s[0]
			pass = s[1]
		}
		h = cookieauth.New().SetUserPass(user, pass).Wrap(h)
		s.log.Printf("Enabled HTTP authentication")
	}
	h = httpmiddleware.Liveness(s.log, h)
	if s.config.Log {
		h = requestlog.Wrap(h)
	}
	return h
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Printf("Listening at http://%s (go%s, %s)", s.config.Listen,
			strings.TrimPrefix(runtime.Version(), "go"), s.version)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Printf("shutting down")
		return server.Shutdown(sctx)
	})
	return g.Wait()
}
