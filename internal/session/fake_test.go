package session

import (
	"errors"
	"sync"
)

const closeMarker = "<close>"

type fakeWriter struct {
	mu      sync.Mutex
	sent    []string
	failAll bool
}

func (w *fakeWriter) WriteText(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return errors.New("broken pipe")
	}
	w.sent = append(w.sent, msg)
	return nil
}

func (w *fakeWriter) WriteClose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return errors.New("broken pipe")
	}
	w.sent = append(w.sent, closeMarker)
	return nil
}

func (w *fakeWriter) frames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.sent))
	copy(out, w.sent)
	return out
}

type fakeReader struct {
	frames [][]byte
	err    error
}

func (r *fakeReader) ReadFrame() ([]byte, error) {
	if len(r.frames) == 0 {
		return nil, r.err
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	return f, nil
}

type lines struct {
	mu    sync.Mutex
	items []string
}

func (l *lines) Record(category, item string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, category+" - "+item)
}
