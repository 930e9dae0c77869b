package state

import (
	"io"
	"sync"
)

// ConsoleWriter syncs writes to stdout and stderr. Writer is what all writes
// go through, it may strip colors. RawOut is the underlying stream.
type ConsoleWriter struct {
	RawOut io.Writer
	Writer io.Writer
	IsTTY  bool
	Mutex  *sync.Mutex
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	return w.Writer.Write(p)
}
