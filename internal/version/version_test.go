package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info{CommitHash: "0123456789abcdef", BuildTime: "2025-06-04", Version: "v1.2.0"}

	assert.Equal(t, "0123456", info.Short())
	assert.Equal(t, "news02 v1.2.0 (commit 0123456, built 2025-06-04)", info.String())
	assert.Equal(t, "News02/v1.2.0 (+https://github.com/kliewerdaniel/News02)", info.UserAgent())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}
