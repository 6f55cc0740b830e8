package version

import (
	"strconv"
	"time"
)

// Set at build time with
// -ldflags "-X github.com/pressops/wpdeploy/pkg/version.revision=... -X github.com/pressops/wpdeploy/pkg/version.date=..."
var (
	revision = "unknown"
	date     = "0"
)

func Version() string {
	return revision
}

// BuildTime returns the time the binary was built, parsed from a UNIX epoch string.
func BuildTime() (time.Time, error) {
	epoch, err := strconv.ParseInt(date, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(epoch, 0), nil
}
