// Package indexer watches directories and publishes a descriptor for every
// file written into them.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/semaphore"

	"github.com/boypt/simple-btclient/logging"
	"github.com/boypt/simple-btclient/mktorrent"
)

const (
	DefaultSettle              = 2 * time.Second
	DefaultMaxFileSize         = 4 * datasize.GB
	DefaultMaxConcurrentBuilds = 2
)

var ErrTooLarge = errors.New("file too large to index")

// Pusher publishes an encoded descriptor under key.
type Pusher interface {
	Push(ctx context.Context, key string, data []byte) error
}

type Option func(*Indexer)

// WithSettle sets how long a file must stay quiet before it is indexed.
func WithSettle(d time.Duration) Option {
	return func(ix *Indexer) {
		if d > 0 {
			ix.settle = d
		}
	}
}

func WithMaxFileSize(n datasize.ByteSize) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.maxFileSize = n
		}
	}
}

func WithMaxConcurrentBuilds(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.builds = n
		}
	}
}

type Indexer struct {
	builder     *mktorrent.Builder
	pusher      Pusher
	trackers    []string
	comment     string
	log         *logging.Logger
	settle      time.Duration
	maxFileSize datasize.ByteSize
	builds      int
	sem         *semaphore.Weighted
}

func New(builder *mktorrent.Builder, pusher Pusher, trackers []string, comment string, log *logging.Logger, opts ...Option) *Indexer {
	ix := &Indexer{
		builder:     builder,
		pusher:      pusher,
		trackers:    trackers,
		comment:     comment,
		log:         log.Child("indexer"),
		settle:      DefaultSettle,
		maxFileSize: DefaultMaxFileSize,
		builds:      DefaultMaxConcurrentBuilds,
	}
	for _, o := range opts {
		o(ix)
	}
	ix.sem = semaphore.NewWeighted(int64(ix.builds))
	return ix
}

// IndexFile builds the descriptor of path and pushes it under the file's
// base name.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*mktorrent.MetaInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if datasize.ByteSize(st.Size()) > ix.maxFileSize {
		return nil, fmt.Errorf("%s (%s): %w", path, datasize.ByteSize(st.Size()).HR(), ErrTooLarge)
	}

	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer ix.sem.Release(1)

	req, err := mktorrent.NewBuildRequest(path, ix.trackers, ix.comment)
	if err != nil {
		return nil, err
	}
	mi, err := ix.builder.Build(req)
	if err != nil {
		return nil, err
	}
	data, err := mktorrent.Encode(mi)
	if err != nil {
		return nil, err
	}
	key := filepath.Base(path)
	if err := ix.pusher.Push(ctx, key, data); err != nil {
		return nil, fmt.Errorf("push %s: %w", key, err)
	}
	hash, _ := mi.InfoHash()
	ix.log.Printf("published %s as %s", hash, key)
	return mi, nil
}

// Watch indexes files written under paths until ctx is done.
func (ix *Indexer) Watch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no watch paths")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w := &watch{
		Indexer: ix,
		watcher: watcher,
		pending: map[string]*pendingFile{},
		ready:   make(chan *pendingFile),
		done:    make(chan struct{}),
	}
	for _, p := range paths {
		if err := w.addTree(p, false); err != nil {
			return err
		}
	}
	return w.run(ctx)
}

// pendingFile is a file waiting for its settle timer.
type pendingFile struct {
	path string
	t    *time.Timer
}

type watch struct {
	*Indexer
	watcher *fsnotify.Watcher
	pending map[string]*pendingFile
	ready   chan *pendingFile
	done    chan struct{}
	wg      sync.WaitGroup
}

func (w *watch) run(ctx context.Context) error {
	defer func() {
		close(w.done)
		for _, p := range w.pending {
			p.t.Stop()
		}
		w.wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case p := <-w.ready:
			if !w.take(p) {
				continue
			}
			path := p.path
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if _, err := w.IndexFile(ctx, path); err != nil {
					if errors.Is(err, ErrTooLarge) {
						w.log.Warnf("skipped %s", err)
					} else {
						w.log.Errorf("index %s: %s", path, err)
					}
				}
			}()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Errorf("watcher: %s", err)
		}
	}
}

func (w *watch) handle(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if p, ok := w.pending[event.Name]; ok {
			p.t.Stop()
			delete(w.pending, event.Name)
		}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		st, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if st.IsDir() {
			if event.Op&fsnotify.Create != 0 {
				if err := w.addTree(event.Name, true); err != nil {
					w.log.Errorf("watch %s: %s", event.Name, err)
				}
			}
			return
		}
		if st.Mode().IsRegular() {
			w.schedule(event.Name)
		}
	}
}

// addTree watches root and every directory below it. Files found in a
// directory that appeared after startup are scheduled as well.
func (w *watch) addTree(root string, scheduleFiles bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.log.Debugf("watching %s", path)
			return w.watcher.Add(path)
		}
		if scheduleFiles && d.Type().IsRegular() {
			w.schedule(path)
		}
		return nil
	})
}

// schedule (re)arms the settle timer of path. A timer that already
// fired cannot be re-armed, its delivery goes stale and a new entry
// replaces it.
func (w *watch) schedule(path string) {
	if p, ok := w.pending[path]; ok && p.t.Stop() {
		p.t.Reset(w.settle)
		return
	}
	p := &pendingFile{path: path}
	w.pending[path] = p
	p.t = time.AfterFunc(w.settle, func() {
		select {
		case w.ready <- p:
		case <-w.done:
		}
	})
}

// take claims a fired timer. Deliveries of replaced or removed entries
// are dropped.
func (w *watch) take(p *pendingFile) bool {
	if w.pending[p.path] != p {
		return false
	}
	delete(w.pending, p.path)
	return true
}
