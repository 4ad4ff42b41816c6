package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUptime(t *testing.T) {
	assert.Equal(t, "0с", uptime(300*time.Millisecond))
	assert.Equal(t, "1м 5с", uptime(65*time.Second))
	assert.Equal(t, "2ч 0м 1с", uptime(2*time.Hour+time.Second))
	assert.Equal(t, "1д 1ч 1м 1с", uptime(25*time.Hour+61*time.Second))
}

func TestReadProcess(t *testing.T) {
	started := time.Now().Add(-90 * time.Second)
	info := readProcess(started)
	assert.Equal(t, started.Unix(), info.StartedAt)
	assert.Equal(t, "1м 30с", info.Uptime)
	assert.Positive(t, info.Goroutines)
	assert.Positive(t, info.SysMB)
}
