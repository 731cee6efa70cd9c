package webserver

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreePort(t *testing.T) {
	port, err := FreePort()
	require.NoError(t, err)
	assert.NotZero(t, port)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err, "probed port should be bindable")
	ln.Close()
}

func TestFindAvailablePort_SkipsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	_, err = FindAvailablePort(busyPort, busyPort)
	assert.Error(t, err)

	if busyPort < 65535 {
		port, err := FindAvailablePort(busyPort, 65535)
		if err == nil {
			assert.NotEqual(t, uint16(busyPort), port)
		}
	}
}

func TestFindAvailablePort_InvalidRange(t *testing.T) {
	for _, r := range [][2]int{{0, 10}, {100, 50}, {60000, 70000}} {
		_, err := FindAvailablePort(r[0], r[1])
		assert.Error(t, err, "range %v", r)
	}
}

func TestShutdownSlot(t *testing.T) {
	var s shutdownSlot
	calls := 0

	assert.Nil(t, s.take())
	assert.False(t, s.fire())

	require.True(t, s.put(func() { calls++ }))
	assert.False(t, s.put(func() { calls += 100 }), "slot is write-once while full")

	assert.True(t, s.fire())
	assert.False(t, s.fire())
	assert.Equal(t, 1, calls)
}
