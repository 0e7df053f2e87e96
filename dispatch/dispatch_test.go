package dispatch

import (
	"os"
	"testing"
	"unsafe"

	"github.com/fsbind/linuxfs/ioctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// capturingCaller records the last system call it receives and returns
// scripted results, standing in for the kernel.
type capturingCaller struct {
	trap  uintptr
	args  [6]uintptr
	r1    uintptr
	errno unix.Errno
	calls int
}

func (c *capturingCaller) Syscall(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
	return c.Syscall6(trap, a1, a2, a3, 0, 0, 0)
}

func (c *capturingCaller) Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (uintptr, uintptr, unix.Errno) {
	c.calls++
	c.trap = trap
	c.args = [6]uintptr{a1, a2, a3, a4, a5, a6}
	return c.r1, 0, c.errno
}

func TestCallPadsArguments(t *testing.T) {
	caller := &capturingCaller{r1: 42}

	r1, err := Openat2.Call(caller, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uintptr(42), r1)
	assert.Equal(t, uintptr(unix.SYS_OPENAT2), caller.trap)
	assert.Equal(t, [6]uintptr{1, 2, 3, 0, 0, 0}, caller.args)
}

func TestCallWrapsErrno(t *testing.T) {
	caller := &capturingCaller{errno: unix.ENOENT}

	_, err := Openat2.Call(caller, 1)
	require.Error(t, err)
	// The errno must stay matchable through the wrap and the message must
	// identify the system call.
	assert.ErrorIs(t, err, unix.ENOENT)
	assert.ErrorContains(t, err, "openat2")
	assert.ErrorContains(t, err, "(errno: 2)")
}

func TestCallRejectsTooManyArguments(t *testing.T) {
	caller := &capturingCaller{}

	_, err := Openat2.Call(caller, 1, 2, 3, 4, 5, 6, 7)
	require.Error(t, err)
	assert.Equal(t, 0, caller.calls, "no system call should be attempted")
}

// TestCallRealKernel dispatches getpid through the real kernel (nil Caller)
// to prove the numbered dispatch path works end to end. getpid cannot fail
// and needs no privileges, which makes it safe to issue from any test runner.
func TestCallRealKernel(t *testing.T) {
	getpid := Binding{Name: "getpid", Trap: unix.SYS_GETPID}

	pid, err := getpid.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), int(pid))
}

func TestIoctl(t *testing.T) {
	caller := &capturingCaller{}
	req := ioctl.IOR('f', 1, 8)

	var arg int64
	err := Ioctl(caller, FD(7), req, unsafe.Pointer(&arg))
	require.NoError(t, err)
	assert.Equal(t, uintptr(unix.SYS_IOCTL), caller.trap)
	assert.Equal(t, uintptr(7), caller.args[0])
	assert.Equal(t, uintptr(req), caller.args[1])
	assert.NotZero(t, caller.args[2], "argument pointer should be passed through")
}

func TestIoctlWrapsErrno(t *testing.T) {
	caller := &capturingCaller{errno: unix.ENOTTY}

	var arg int64
	err := Ioctl(caller, FD(7), ioctl.IOR('f', 1, 8), unsafe.Pointer(&arg))
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOTTY)
	assert.ErrorContains(t, err, "0x80086601")
}

func TestFD(t *testing.T) {
	assert.Equal(t, uintptr(5), FD(5).Fd())

	f, err := os.Open(os.DevNull)
	require.NoError(t, err, "error during test setup")
	defer f.Close()
	// *os.File satisfies File directly.
	var file File = f
	assert.Equal(t, f.Fd(), file.Fd())
}
