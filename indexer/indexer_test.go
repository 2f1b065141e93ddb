package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boypt/simple-btclient/logging"
	"github.com/boypt/simple-btclient/mktorrent"
)

type fakePusher struct {
	mu     sync.Mutex
	pushed map[string][]byte
	ch     chan string
	err    error
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushed: map[string][]byte{}, ch: make(chan string, 16)}
}

func (f *fakePusher) Push(ctx context.Context, key string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.pushed[key] = data
	f.mu.Unlock()
	f.ch <- key
	return nil
}

func (f *fakePusher) wait(t *testing.T, key string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case k := <-f.ch:
			if k == key {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for push of %s", key)
		}
	}
}

var trackers = []string{"http://tracker.example/announce"}

func newTestIndexer(p Pusher, opts ...Option) *Indexer {
	return New(mktorrent.NewBuilder(nil), p, trackers, "", logging.Discard(), opts...)
}

func Test_Indexer_IndexFile(t *testing.T) {
	p := newFakePusher()
	ix := newTestIndexer(p)
	path := filepath.Join(t.TempDir(), "data.bin")
	os.WriteFile(path, []byte("hello world"), 0o644)

	mi, err := ix.IndexFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	data, ok := p.pushed["data.bin"]
	if !ok {
		t.Fatalf("nothing pushed under data.bin, got %v", p.pushed)
	}
	want, _ := mktorrent.Encode(mi)
	if string(data) != string(want) {
		t.Errorf("pushed descriptor differs from the built one")
	}
	if mi.Info.Length != 11 || mi.Announce != trackers[0] {
		t.Errorf("descriptor = %+v", mi)
	}
}

func Test_Indexer_IndexFile_errors(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.bin")
	os.WriteFile(big, make([]byte, 100), 0o644)

	ix := newTestIndexer(newFakePusher(), WithMaxFileSize(10))
	if _, err := ix.IndexFile(context.Background(), big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("IndexFile(big) error = %v, want ErrTooLarge", err)
	}
	if _, err := ix.IndexFile(context.Background(), dir); err == nil {
		t.Errorf("IndexFile(dir) should fail")
	}
	if _, err := ix.IndexFile(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Errorf("IndexFile(missing) should fail")
	}

	p := newFakePusher()
	p.err = errors.New("index down")
	ix = newTestIndexer(p)
	if _, err := ix.IndexFile(context.Background(), big); err == nil {
		t.Errorf("IndexFile() with failing pusher should fail")
	}

	ix = New(mktorrent.NewBuilder(nil), newFakePusher(), nil, "", logging.Discard())
	if _, err := ix.IndexFile(context.Background(), big); !mktorrent.IsConfiguration(err) {
		t.Errorf("IndexFile() without trackers error = %v", err)
	}
}

func Test_Indexer_Watch(t *testing.T) {
	dir := t.TempDir()
	p := newFakePusher()
	ix := newTestIndexer(p, WithSettle(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ix.Watch(ctx, []string{dir}) }()
	// let the watcher register
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "a.iso"), []byte("first"), 0o644)
	p.wait(t, "a.iso")

	sub := filepath.Join(dir, "nested")
	os.Mkdir(sub, 0o755)
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(sub, "b.iso"), []byte("second"), 0o644)
	p.wait(t, "b.iso")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func Test_Indexer_Watch_noPaths(t *testing.T) {
	ix := newTestIndexer(newFakePusher())
	if err := ix.Watch(context.Background(), nil); err == nil {
		t.Errorf("Watch(nil) should fail")
	}
}

// A write landing after the settle timer fired, but before the run loop
// picked it up, must still index the file once.
func Test_watch_schedule_afterFire(t *testing.T) {
	w := &watch{
		Indexer: newTestIndexer(newFakePusher(), WithSettle(10*time.Millisecond)),
		pending: map[string]*pendingFile{},
		ready:   make(chan *pendingFile),
		done:    make(chan struct{}),
	}
	defer close(w.done)

	w.schedule("a.bin")
	time.Sleep(50 * time.Millisecond) // fired, blocked on ready
	w.schedule("a.bin")

	taken := 0
	for i := 0; i < 2; i++ {
		select {
		case p := <-w.ready:
			if w.take(p) {
				taken++
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}
	if taken != 1 {
		t.Errorf("taken %d times, want 1", taken)
	}
	if len(w.pending) != 0 {
		t.Errorf("pending = %v", w.pending)
	}
}

func Test_watch_schedule_rearm(t *testing.T) {
	w := &watch{
		Indexer: newTestIndexer(newFakePusher(), WithSettle(time.Hour)),
		pending: map[string]*pendingFile{},
		ready:   make(chan *pendingFile),
		done:    make(chan struct{}),
	}
	defer close(w.done)

	w.schedule("a.bin")
	first := w.pending["a.bin"]
	w.schedule("a.bin")
	if w.pending["a.bin"] != first {
		t.Errorf("pending timer replaced, want re-armed")
	}
	first.t.Stop()
}
