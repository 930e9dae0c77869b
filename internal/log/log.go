// Package log contains the logrus hooks and helpers used to set up logging.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AsyncHook extends the logrus.Hook functionality by handling logs asynchronously.
type AsyncHook interface {
	logrus.Hook
	// Listen is a blocking call that handles the log lines until ctx is done.
	Listen(ctx context.Context)
}
