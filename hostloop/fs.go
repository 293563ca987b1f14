package hostloop

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/asynctrace/core"
)

// request issues one FSREQWRAP operation: work runs on a worker goroutine,
// then oncomplete runs on the loop with its results.
func (l *Loop) request(fields map[string]any, work func() []any, oncomplete func(args ...any)) (core.ID, *FSReq) {
	cb := newCallback(oncomplete, func(a []any) { oncomplete(a...) })
	req := newFSReq(fields, cb)
	id := l.create(TypeFSReqWrap, req)
	go func() {
		res := work()
		l.post(task{id: id, final: true, run: func() { cb.Invoke(res...) }})
	}()
	return id, req
}

// Stat reports the file info of path to cb.
func (l *Loop) Stat(path string, cb func(info fs.FileInfo, err error)) core.ID {
	id, _ := l.request(
		map[string]any{"path": path},
		func() []any {
			info, err := os.Stat(path)
			return []any{err, info}
		},
		func(args ...any) {
			err, _ := args[0].(error)
			info, _ := args[1].(fs.FileInfo)
			cb(info, err)
		},
	)
	return id
}

// ReadFile reads the whole file at path and hands its content to cb. The
// read is split into open, fstat, read and close requests, each issued
// from the completion of the previous one.
func (l *Loop) ReadFile(path string, cb func(data []byte, err error)) core.ID {
	r := &fileRead{loop: l, path: path, done: cb}
	return r.open()
}

type fileRead struct {
	loop *Loop
	path string
	file *os.File
	fd   int
	done func(data []byte, err error)
}

func (r *fileRead) open() core.ID {
	id, _ := r.loop.request(
		map[string]any{"path": r.path, "flags": "r"},
		func() []any {
			f, err := os.Open(r.path)
			return []any{err, f}
		},
		func(args ...any) {
			if err, _ := args[0].(error); err != nil {
				r.done(nil, err)
				return
			}
			r.file = args[1].(*os.File)
			r.fd = int(r.file.Fd())
			r.fstat()
		},
	)
	return id
}

func (r *fileRead) fstat() {
	r.loop.request(
		map[string]any{"fd": r.fd},
		func() []any {
			info, err := r.file.Stat()
			return []any{err, info}
		},
		func(args ...any) {
			if err, _ := args[0].(error); err != nil {
				r.close(nil, err)
				return
			}
			r.read(args[1].(fs.FileInfo).Size())
		},
	)
}

func (r *fileRead) read(size int64) {
	buf := make([]byte, size)
	var req *FSReq
	_, req = r.loop.request(
		map[string]any{"fd": r.fd, "buffer": buf, "offset": 0, "length": len(buf), "position": -1},
		func() []any {
			n, err := io.ReadFull(r.file, buf)
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				err = nil
			}
			return []any{err, n}
		},
		func(args ...any) {
			err, _ := args[0].(error)
			n, _ := args[1].(int)
			req.set("bytesRead", n)
			r.close(buf[:n], err)
		},
	)
}

func (r *fileRead) close(data []byte, readErr error) {
	r.loop.request(
		map[string]any{"fd": r.fd},
		func() []any {
			return []any{r.file.Close()}
		},
		func(args ...any) {
			err, _ := args[0].(error)
			if readErr != nil {
				err = readErr
			}
			if err != nil {
				data = nil
			}
			r.done(data, err)
		},
	)
}

// Watcher is a live file-system watch.
type Watcher struct {
	loop    *Loop
	id      core.ID
	watcher *fsnotify.Watcher
	stopped chan struct{}
	once    sync.Once
}

// ID returns the id of the watch operation.
func (w *Watcher) ID() core.ID { return w.id }

// Watch reports changes to path to onchange until the watcher is closed.
// Each change is one before/after pair of the same FSEVENTWRAP operation.
func (l *Loop) Watch(path string, onchange func(ev fsnotify.Event, err error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	cb := newCallback(onchange, func(a []any) {
		ev, _ := a[0].(fsnotify.Event)
		err, _ := a[1].(error)
		onchange(ev, err)
	})
	w := &Watcher{
		loop:    l,
		watcher: fw,
		stopped: make(chan struct{}),
	}
	w.id = l.create(TypeFSEventWrap, &FSEvent{path: path, handle: fw, onchange: cb})

	go func() {
		defer close(w.stopped)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				l.post(task{id: w.id, run: func() { cb.Invoke(ev, nil) }})
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				l.post(task{id: w.id, run: func() { cb.Invoke(fsnotify.Event{}, err) }})
			}
		}
	}()
	return w, nil
}

// Close stops the watch. The operation is destroyed on the next loop turn;
// no change is delivered after that. Close is idempotent.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.stopped
		w.loop.post(task{id: w.id, final: true})
	})
	return err
}
