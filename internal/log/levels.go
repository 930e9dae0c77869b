package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LevelsUpTo returns the levels at least as severe as the named one, the set
// a hook has to subscribe to for that threshold.
func LevelsUpTo(name string) ([]logrus.Level, error) {
	threshold, err := logrus.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %s", name)
	}
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, lvl := range logrus.AllLevels {
		if lvl <= threshold {
			levels = append(levels, lvl)
		}
	}
	return levels, nil
}
