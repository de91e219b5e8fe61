package logsource

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Line is one complete log line with the byte offset just past its
// terminating newline. Offsets restart at zero after a rotation.
type Line struct {
	Text   string
	Offset int64
}

// StatusFunc receives source availability changes.
type StatusFunc func(available bool)

// Config holds tailer settings.
type Config struct {
	Path             string
	PollInterval     time.Duration // tail-mode poll fallback
	RetryBaseDelay   time.Duration // backoff base when the file is missing/locked
	RetryMaxDelay    time.Duration
	UnavailableAfter time.Duration // report unavailable after this long without the file
	ReadChunkSize    int
}

// DefaultConfig returns sensible defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		PollInterval:     500 * time.Millisecond,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    30 * time.Second,
		UnavailableAfter: 2 * time.Minute,
		ReadChunkSize:    64 * 1024,
	}
}

// Stats contains tailer counters.
type Stats struct {
	LinesEmitted int64
	BytesRead    int64
	Rotations    int64
	Reopens      int64
	Offset       int64
}

// Tailer reads the client log incrementally and emits complete lines.
type Tailer struct {
	cfg    Config
	logger *slog.Logger
	status StatusFunc

	lines chan Line

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Reader state, owned by the run goroutine.
	file    *os.File
	info    os.FileInfo
	offset  int64
	partial []byte

	available    bool
	missingSince time.Time

	linesEmitted atomic.Int64
	bytesRead    atomic.Int64
	rotations    atomic.Int64
	reopens      atomic.Int64
	curOffset    atomic.Int64
}

// New creates a tailer that resumes from startOffset.
func New(cfg Config, startOffset int64, status StatusFunc, logger *slog.Logger) *Tailer {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tailer{
		cfg:    cfg,
		logger: logger,
		status: status,
		lines:  make(chan Line, 256),
		offset: startOffset,
		// Presumed available until the retry threshold says otherwise.
		available: true,
	}
	t.curOffset.Store(startOffset)
	return t
}

// Lines returns the output channel. It is closed when the tailer stops.
func (t *Tailer) Lines() <-chan Line { return t.lines }

// Start begins tailing in the background.
func (t *Tailer) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.run()

	t.logger.Info("line source started",
		"path", t.cfg.Path,
		"resume_offset", t.offset,
	)
	return nil
}

// Stop shuts the tailer down and releases the file handle.
func (t *Tailer) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("line source stopped", "offset", t.curOffset.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (t *Tailer) Stats() Stats {
	return Stats{
		LinesEmitted: t.linesEmitted.Load(),
		BytesRead:    t.bytesRead.Load(),
		Rotations:    t.rotations.Load(),
		Reopens:      t.reopens.Load(),
		Offset:       t.curOffset.Load(),
	}
}

// run is the single reader goroutine.
func (t *Tailer) run() {
	defer t.wg.Done()
	defer close(t.lines)
	defer t.closeFile()

	watcher := t.newWatcher()
	if watcher != nil {
		defer watcher.Close()
	}

	for {
		if t.ctx.Err() != nil {
			return
		}

		if t.file == nil {
			if !t.openWithRetry() {
				return
			}
		}

		// Catch-up: drain to EOF before waiting for more.
		if err := t.readAvailable(); err != nil {
			t.logger.Warn("read failed, reopening", "error", err)
			t.closeFile()
			continue
		}
		if t.ctx.Err() != nil {
			return
		}

		if t.checkRotation() {
			continue
		}

		t.waitForChange(watcher)
	}
}

// newWatcher watches the log's directory; nil means poll-only mode.
func (t *Tailer) newWatcher() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("fsnotify unavailable, polling only", "error", err)
		return nil
	}
	if err := watcher.Add(filepath.Dir(t.cfg.Path)); err != nil {
		t.logger.Warn("cannot watch log directory, polling only", "error", err)
		watcher.Close()
		return nil
	}
	return watcher
}

// openWithRetry opens the file with capped backoff, seeks to the resume
// offset, and reports availability transitions. Returns false only on
// shutdown.
func (t *Tailer) openWithRetry() bool {
	delay := t.cfg.RetryBaseDelay
	for {
		if t.tryOpen() {
			t.setAvailable(true)
			return true
		}

		if t.missingSince.IsZero() {
			t.missingSince = time.Now()
		} else if time.Since(t.missingSince) >= t.cfg.UnavailableAfter {
			t.setAvailable(false)
		}

		select {
		case <-t.ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay *= 2
		if delay > t.cfg.RetryMaxDelay {
			delay = t.cfg.RetryMaxDelay
		}
	}
}

func (t *Tailer) tryOpen() bool {
	f, err := os.Open(t.cfg.Path)
	if err != nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return false
	}

	// A different file at the same path, or one smaller than the resume
	// offset, means the log rotated while we were away: start over.
	if t.info != nil && !os.SameFile(t.info, info) && t.offset > 0 {
		t.logger.Info("log replaced while closed, treating as rotation")
		t.rotations.Add(1)
		t.resetOffset()
	} else if info.Size() < t.offset {
		t.logger.Info("log shrank while closed, treating as rotation",
			"size", info.Size(),
			"resume_offset", t.offset,
		)
		t.rotations.Add(1)
		t.resetOffset()
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		f.Close()
		return false
	}

	t.file = f
	t.info = info
	t.missingSince = time.Time{}
	t.reopens.Add(1)
	return true
}

// readAvailable drains the file to EOF, emitting complete lines and
// buffering any partial tail the writer has not finished yet.
func (t *Tailer) readAvailable() error {
	buf := make([]byte, t.cfg.ReadChunkSize)
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.bytesRead.Add(int64(n))
			if !t.emit(buf[:n]) {
				return nil // shutting down
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// emit splits a chunk into lines and sends them. Returns false on
// shutdown.
func (t *Tailer) emit(chunk []byte) bool {
	t.partial = append(t.partial, chunk...)

	for {
		idx := bytes.IndexByte(t.partial, '\n')
		if idx < 0 {
			// Incomplete tail stays buffered; the offset only advances
			// past fully emitted lines.
			return true
		}

		line := t.partial[:idx]
		t.partial = t.partial[idx+1:]
		t.offset += int64(idx + 1)
		t.curOffset.Store(t.offset)

		text := string(bytes.TrimSuffix(line, []byte("\r")))
		select {
		case t.lines <- Line{Text: text, Offset: t.offset}:
			t.linesEmitted.Add(1)
		case <-t.ctx.Done():
			return false
		}
	}
}

// checkRotation re-stats the path after EOF. The old handle has already
// been drained, so switching files here preserves strict order across
// the rotation.
func (t *Tailer) checkRotation() bool {
	cur, err := os.Stat(t.cfg.Path)
	if err != nil {
		// Rotated away or briefly locked; reopen with retry. The open
		// path decides whether the offset survives, so a transient stat
		// failure does not force a re-read.
		t.logger.Info("log missing after EOF, reopening", "error", err)
		t.closeFile()
		return true
	}

	if !os.SameFile(t.info, cur) {
		t.logger.Info("log identity changed, rotating")
		t.closeFile()
		t.resetOffset()
		t.rotations.Add(1)
		return true
	}

	if cur.Size() < t.offset {
		t.logger.Info("log truncated in place, rotating",
			"size", cur.Size(),
			"offset", t.offset,
		)
		t.closeFile()
		t.resetOffset()
		t.rotations.Add(1)
		return true
	}

	return false
}

// waitForChange blocks until the log plausibly grew, the poll interval
// elapsed, or shutdown.
func (t *Tailer) waitForChange(watcher *fsnotify.Watcher) {
	poll := time.NewTimer(t.cfg.PollInterval)
	defer poll.Stop()

	if watcher == nil {
		select {
		case <-t.ctx.Done():
		case <-poll.C:
		}
		return
	}

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-poll.C:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name == t.cfg.Path {
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.logger.Debug("fsnotify error", "error", err)
		}
	}
}

func (t *Tailer) resetOffset() {
	t.offset = 0
	t.partial = nil
	t.curOffset.Store(0)
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

func (t *Tailer) setAvailable(available bool) {
	if t.available == available && available {
		return
	}
	changed := t.available != available
	t.available = available
	if changed && t.status != nil {
		t.status(available)
	}
}
