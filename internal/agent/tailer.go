// Package agent tails a log file and ships each appended line to the
// ingestion server. Lines written while the connection is down are lost;
// there is no replay protocol.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
)

// Tailer emits lines appended to a single file. It watches the parent
// directory so file rotation (remove + recreate) is survivable.
type Tailer struct {
	path      string
	fromStart bool
	logger    *logging.Logger

	file   *os.File
	offset int64
	buf    string // partial trailing line
	out    chan string
}

// NewTailer creates a tailer for path. Lines arrive on Lines() once Start
// is running.
func NewTailer(path string, fromStart bool, logger *logging.Logger) *Tailer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tailer{
		path:      path,
		fromStart: fromStart,
		logger:    logger,
		out:       make(chan string, 512),
	}
}

// Lines returns the channel carrying appended lines in file order.
func (t *Tailer) Lines() <-chan string { return t.out }

// Start watches the file until ctx is cancelled. It blocks; run it in its
// own goroutine.
func (t *Tailer) Start(ctx context.Context) error {
	defer close(t.out)

	if err := t.open(); err != nil {
		return err
	}
	defer t.closeFile()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: rotation replaces the inode and
	// a direct watch would go stale.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(t.path), err)
	}

	// Catch up on anything appended before the watch was in place.
	t.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			switch {
			case ev.Op&fsnotify.Write != 0:
				t.drain(ctx)
			case ev.Op&fsnotify.Create != 0:
				// Rotated file reappeared; start over from the top.
				t.closeFile()
				t.reopenFromStart()
				t.drain(ctx)
			case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
				t.closeFile()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (t *Tailer) open() error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}

	var offset int64
	if !t.fromStart {
		offset, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return fmt.Errorf("seek %s: %w", t.path, err)
		}
	}

	t.file = f
	t.offset = offset
	return nil
}

func (t *Tailer) reopenFromStart() {
	for i := 0; i < 5; i++ {
		f, err := os.Open(t.path)
		if err == nil {
			t.file = f
			t.offset = 0
			t.buf = ""
			t.logger.Info("reopened rotated file", zap.String("path", t.path))
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.logger.Warn("could not reopen rotated file", zap.String("path", t.path))
}

// drain reads from the current offset to EOF, emitting complete lines and
// buffering an unterminated tail for the next write.
func (t *Tailer) drain(ctx context.Context) {
	if t.file == nil {
		return
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Warn("seek failed", zap.String("path", t.path), zap.Error(err))
		return
	}

	reader := bufio.NewReader(t.file)
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			// Incomplete final line: hold it until its newline arrives.
			t.buf += chunk
			t.offset += int64(len(chunk))
			return
		}

		line := strings.TrimRight(t.buf+chunk, "\r\n")
		t.buf = ""
		t.offset += int64(len(chunk))

		if line == "" {
			continue
		}
		select {
		case t.out <- line:
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}
