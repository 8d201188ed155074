package amemlock

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
)

func exitImmediatelyCmd() *exec.Cmd {
	return exec.Command("/bin/sh", "-c", "exit 0")
}

func TestAcquireAndRelease(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.amem")

	l, err := Acquire(storePath)
	require.NoError(t, err)
	require.FileExists(t, storePath+".lock")

	require.NoError(t, l.Release())
	assert.NoFileExists(t, storePath+".lock")
}

func TestAcquireFailsWhenLiveHolderExists(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.amem")

	l, err := Acquire(storePath)
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(storePath)
	require.Error(t, err)
	assert.Equal(t, amemerr.Locked, amemerr.KindOf(err))
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.amem")
	lockPath := storePath + ".lock"

	// A PID from a process guaranteed not to be alive: 1 above the max the
	// OS typically hands out is impractical to pick deterministically, so
	// instead spawn-and-exit a real process and reuse its PID immediately.
	deadPID := spawnAndWaitPID(t)

	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(deadPID)), 0644))

	l, err := Acquire(storePath)
	require.NoError(t, err)
	defer l.Release()

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func spawnAndWaitPID(t *testing.T) int {
	t.Helper()
	cmd := exitImmediatelyCmd()
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	return pid
}
