package log

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"go.k6.io/jscat/lib/fsext"
)

// pendingLines is how many formatted entries may wait for the writer.
const pendingLines = 100

// FileConfig is the parsed form of a `file=path[,level=lvl]` log output.
type FileConfig struct {
	Path   string
	Levels []logrus.Level
}

// ParseFileConfig parses a `file=path[,level=lvl]` log output. Without a
// level every entry goes to the file.
func ParseFileConfig(line string) (FileConfig, error) {
	conf := FileConfig{Levels: logrus.AllLevels}
	if !strings.HasPrefix(line, "file=") {
		return conf, fmt.Errorf("a log file output looks like `file=path[,level=lvl]`, got `%s`", line)
	}
	for _, option := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(option, "=")
		if !ok {
			return conf, fmt.Errorf("log file option %q has no value", key)
		}
		switch strings.TrimSpace(key) {
		case "file":
			if value == "" {
				return conf, errors.New("the log file path is empty")
			}
			conf.Path = value
		case "level":
			levels, err := LevelsUpTo(value)
			if err != nil {
				return conf, err
			}
			conf.Levels = levels
		default:
			return conf, fmt.Errorf("unknown log file option %s", key)
		}
	}
	return conf, nil
}

// FileHook appends log entries to a file. Fire only queues the entry, the
// writing happens in Listen.
type FileHook struct {
	conf     FileConfig
	fallback logrus.FieldLogger
	lines    chan []byte
	file     io.Closer
	out      *bufio.Writer
}

var _ AsyncHook = &FileHook{}

// NewFileHook opens conf.Path for appending, relative paths are resolved
// against cwd. The directory of the file has to exist.
func NewFileHook(afs fsext.Fs, cwd string, fallback logrus.FieldLogger, conf FileConfig) (*FileHook, error) {
	conf.Path = fsext.Abs(cwd, conf.Path)
	dir := filepath.Dir(conf.Path)
	if _, err := afs.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("the log file directory %s does not exist", dir)
	}
	f, err := afs.OpenFile(conf.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the log file %s: %w", conf.Path, err)
	}
	return &FileHook{
		conf:     conf,
		fallback: fallback,
		lines:    make(chan []byte, pendingLines),
		file:     f,
		out:      bufio.NewWriter(f),
	}, nil
}

// FileHookFromConfigLine parses line and opens the hook it describes.
func FileHookFromConfigLine(
	fs fsext.Fs, getCwd func() (string, error), fallback logrus.FieldLogger, line string,
) (AsyncHook, error) {
	conf, err := ParseFileConfig(line)
	if err != nil {
		return nil, err
	}
	var cwd string
	if !filepath.IsAbs(conf.Path) {
		if cwd, err = getCwd(); err != nil {
			return nil, fmt.Errorf("couldn't resolve the relative log file %s: %w", conf.Path, err)
		}
	}
	return NewFileHook(fs, cwd, fallback, conf)
}

// Path is the absolute path of the log file.
func (h *FileHook) Path() string { return h.conf.Path }

// Levels implements logrus.Hook.
func (h *FileHook) Levels() []logrus.Level { return h.conf.Levels }

// Fire implements logrus.Hook.
func (h *FileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return fmt.Errorf("couldn't format the log entry: %w", err)
	}
	h.lines <- line
	return nil
}

// Listen writes queued entries until ctx is done, then writes whatever is
// still queued and closes the file.
func (h *FileHook) Listen(ctx context.Context) {
	for {
		select {
		case line := <-h.lines:
			h.write(line)
		case <-ctx.Done():
			h.drain()
			if err := h.out.Flush(); err != nil {
				h.fallback.WithError(err).Error("Couldn't flush the log file")
			}
			if err := h.file.Close(); err != nil {
				h.fallback.WithError(err).Error("Couldn't close the log file")
			}
			return
		}
	}
}

func (h *FileHook) drain() {
	for {
		select {
		case line := <-h.lines:
			h.write(line)
		default:
			return
		}
	}
}

func (h *FileHook) write(line []byte) {
	if _, err := h.out.Write(line); err != nil {
		h.fallback.WithError(err).Error("Couldn't write to the log file")
	}
}
