package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"go.k6.io/jscat/lib/fsext"
)

// DefaultDelay is how long FSNotify waits for more events before handing a
// batch over.
const DefaultDelay = 50 * time.Millisecond

// FSNotify is a Backend on top of the OS notification facilities. Events are
// collected until no new one arrived for the configured delay and then
// delivered together. Directories created inside watched directories are
// watched automatically.
type FSNotify struct {
	logger  logrus.FieldLogger
	fs      fsext.Fs
	watcher *fsnotify.Watcher
	delay   time.Duration

	batches   chan []Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

var _ Backend = &FSNotify{}

// NewFSNotify starts a new FSNotify backend.
func NewFSNotify(logger logrus.FieldLogger, fs fsext.Fs, delay time.Duration) (*FSNotify, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	f := &FSNotify{
		logger:  logger.WithField("component", "fsnotify"),
		fs:      fs,
		watcher: w,
		delay:   delay,
		batches: make(chan []Event),
		done:    make(chan struct{}),
	}
	f.wg.Add(1)
	go f.loop()
	return f, nil
}

// Add starts watching path.
func (f *FSNotify) Add(path string) error {
	return f.watcher.Add(path)
}

// Batches returns the channel the batches are delivered on. It is closed
// once the backend is closed.
func (f *FSNotify) Batches() <-chan []Event {
	return f.batches
}

// Close stops watching and waits for the delivery loop to end.
func (f *FSNotify) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		f.closeErr = f.watcher.Close()
		f.wg.Wait()
	})
	return f.closeErr
}

func (f *FSNotify) loop() {
	defer f.wg.Done()
	defer close(f.batches)

	var (
		pending []Event
		timer   = time.NewTimer(f.delay)
	)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			pending = append(pending, f.convert(ev))
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(f.delay)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.WithError(err).Warn("File watcher error")
		case <-timer.C:
			batch := pending
			pending = nil
			select {
			case f.batches <- batch:
			case <-f.done:
				return
			}
		}
	}
}

func (f *FSNotify) convert(ev fsnotify.Event) Event {
	var op Op
	for from, to := range map[fsnotify.Op]Op{
		fsnotify.Create: Create,
		fsnotify.Write:  Write,
		fsnotify.Remove: Remove,
		fsnotify.Rename: Rename,
		fsnotify.Chmod:  Chmod,
	} {
		if ev.Has(from) {
			op |= to
		}
	}

	if op.Has(Create) {
		if isDir, err := fsext.IsDir(f.fs, ev.Name); err == nil && isDir {
			if err := f.watcher.Add(ev.Name); err != nil {
				f.logger.WithError(err).WithField("path", ev.Name).Warn("Couldn't watch the new directory")
			}
		}
	}
	return Event{Path: ev.Name, Op: op}
}
