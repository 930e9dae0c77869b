package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Parallel()

	s := String()
	assert.Contains(t, s, "v"+Full()+" (")
	assert.Contains(t, s, runtime.Version())
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)

	details := Details()
	assert.Equal(t, "v"+Full(), details["version"])
	assert.Equal(t, runtime.GOARCH, details["go_arch"])
}
