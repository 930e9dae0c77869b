// Package watch rebuilds an artifact whenever its inputs change.
package watch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"go.k6.io/jscat/internal/pipeline"
)

// BuildFunc runs one build of the artifact.
type BuildFunc func(ctx context.Context, mode pipeline.FailureMode) error

// Options configure a Controller.
type Options struct {
	// SkipInitialBuild starts watching without building first.
	SkipInitialBuild bool
	// Build runs a build. It is never called concurrently.
	Build BuildFunc
	// Targets returns the paths to watch. It is called after every build so
	// that newly created directories get watched as well.
	Targets func() ([]string, error)
	// Matcher filters the change batches.
	Matcher Matcher
}

type state uint8

const (
	idle state = iota
	building
)

// Controller runs the initial build and then a rebuild for every relevant
// batch of changes. Only one build runs at a time, changes arriving during a
// build are coalesced into exactly one more.
type Controller struct {
	logger  logrus.FieldLogger
	backend Backend
	opts    Options

	mu      sync.Mutex
	state   state
	pending bool

	wg    sync.WaitGroup
	errCh chan error
}

// New returns a Controller driven by the batches of backend.
func New(logger logrus.FieldLogger, backend Backend, opts Options) *Controller {
	return &Controller{
		logger:  logger.WithField("component", "watch"),
		backend: backend,
		opts:    opts,
		errCh:   make(chan error, 1),
	}
}

// Run blocks until ctx is done, the backend stops delivering batches, or a
// build fails with an error that isn't a tolerated compile failure. A failed
// initial build is returned right away. Run waits for an in-flight rebuild
// to finish before returning.
func (c *Controller) Run(ctx context.Context) error {
	if !c.opts.SkipInitialBuild {
		if err := c.opts.Build(ctx, pipeline.FailFast); err != nil {
			return err
		}
	}
	if err := c.arm(); err != nil {
		return err
	}
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.errCh:
			return err
		case batch, ok := <-c.backend.Batches():
			if !ok {
				return nil
			}
			c.handle(ctx, batch)
		}
	}
}

func (c *Controller) handle(ctx context.Context, batch []Event) {
	relevant := c.opts.Matcher.Filter(batch)
	if len(relevant) == 0 {
		return
	}
	for _, ev := range relevant {
		c.logger.WithFields(logrus.Fields{"event": ev.Op, "file": ev.Path}).Debug("Change detected")
	}
	c.trigger(ctx)
}

func (c *Controller) trigger(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == building {
		c.pending = true
		c.logger.Debug("A build is in progress, queueing a rebuild")
		return
	}
	c.state = building
	c.wg.Add(1)
	go c.rebuild(ctx)
}

// rebuild builds until no more changes are pending. A started build is
// never canceled.
func (c *Controller) rebuild(ctx context.Context) {
	defer c.wg.Done()
	buildCtx := context.WithoutCancel(ctx)
	for {
		c.logger.Debug("Rebuilding")
		err := c.opts.Build(buildCtx, pipeline.Tolerant)
		if err == nil {
			err = c.arm()
		}
		if err != nil {
			c.errCh <- err
			return
		}

		c.mu.Lock()
		if !c.pending || ctx.Err() != nil {
			c.state = idle
			c.pending = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Controller) arm() error {
	if c.opts.Targets == nil {
		return nil
	}
	targets, err := c.opts.Targets()
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := c.backend.Add(t); err != nil {
			c.logger.WithError(err).WithField("path", t).Warn("Couldn't watch the path")
		}
	}
	return nil
}
