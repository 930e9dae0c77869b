package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsUpTo(t *testing.T) {
	t.Parallel()

	testCases := map[string][]logrus.Level{
		"panic":   {logrus.PanicLevel},
		"error":   {logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
		"warning": {logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
		"trace":   logrus.AllLevels,
	}
	for name, expected := range testCases {
		levels, err := LevelsUpTo(name)
		require.NoError(t, err, name)
		assert.Equal(t, expected, levels, name)
	}

	_, err := LevelsUpTo("shout")
	assert.EqualError(t, err, "unknown log level shout")
}
