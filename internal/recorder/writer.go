package recorder

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"futurebot/internal/bus"
	"futurebot/internal/obs"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrClosed         = errors.New("recorder: closed")
	ErrNotStarted     = errors.New("recorder: not started")
	ErrAlreadyStarted = errors.New("recorder: already started")
)

const (
	CategoryTrading    = "Trading"
	CategoryMarketData = "MarketData"
	CategoryAny        = "Any"
)

// Line is one entry of the trading log.
type Line struct {
	Time     time.Time
	Category string
	Item     string
}

// Format renders "<RFC1123Z time> - <category> - <item>\n".
func (l Line) Format(loc *time.Location) string {
	return l.Time.In(loc).Format(time.RFC1123Z) + " - " + l.Category + " - " + l.Item + "\n"
}

// Writer appends queued lines to a text file from one goroutine.
type Writer struct {
	cfg     Config
	loc     *time.Location
	queue   *bus.Queue[Line]
	metrics *obs.Metrics
	now     func() time.Time

	started atomic.Bool
	done    chan struct{}

	mu   sync.Mutex
	file *os.File
	out  *bufio.Writer
	err  error
}

// NewWriter validates cfg and creates the log directory.
func NewWriter(cfg Config, metrics *obs.Metrics) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, errors.Wrap(err, "load log location").With("location", cfg.Location)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory").With("path", cfg.Path)
	}
	return &Writer{
		cfg:     cfg,
		loc:     loc,
		queue:   bus.NewQueue[Line](cfg.QueueSize),
		metrics: metrics,
		now:     time.Now,
		done:    make(chan struct{}),
	}, nil
}

// Start opens the file for appending and starts the writer goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		close(w.done)
		return errors.Wrap(err, "open log file").With("path", w.cfg.Path)
	}
	w.file = f
	w.out = bufio.NewWriterSize(f, w.cfg.BufferSize)

	go w.run(ctx)
	return nil
}

// Close stops accepting lines, writes what is queued and closes the file.
func (w *Writer) Close() error {
	w.queue.Close()
	if w.started.Load() {
		<-w.done
	}
	return w.Err()
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// TryAppend queues l without blocking.
func (w *Writer) TryAppend(l Line) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	err := w.queue.TryPublish(l)
	if err == bus.ErrQueueClosed {
		return ErrClosed
	}
	return err
}

// Record stamps item with the current time and queues it. Lines that cannot
// be queued are dropped.
func (w *Writer) Record(category, item string) {
	err := w.TryAppend(Line{Time: w.now(), Category: category, Item: item})
	if err == nil {
		return
	}
	w.metrics.IncQueueDrop("recorder")
	if err != bus.ErrQueueFull {
		logs.Errorf("record %s line, err: %+v", category, err)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	stop := make(chan struct{})
	if w.cfg.FlushInterval > 0 {
		go w.flushEvery(w.cfg.FlushInterval, stop)
	}
	w.queue.Run(ctx, w.write)
	close(stop)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.keep(w.out.Flush())
	w.keep(w.file.Close())
}

func (w *Writer) write(l Line) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	_, err := w.out.WriteString(l.Format(w.loc))
	w.keep(err)
}

func (w *Writer) flushEvery(d time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			w.mu.Lock()
			w.keep(w.out.Flush())
			w.mu.Unlock()
		}
	}
}

// keep records the first error. Callers hold mu.
func (w *Writer) keep(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}
