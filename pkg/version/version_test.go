package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTime(t *testing.T) {
	old := date
	defer func() { date = old }()

	date = "1726050395"
	ts, err := BuildTime()
	assert.NoError(t, err)
	assert.Equal(t, int64(1726050395), ts.Unix())

	date = "yesterday"
	_, err = BuildTime()
	assert.Error(t, err)
}
