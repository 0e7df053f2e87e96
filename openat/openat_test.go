package openat

import (
	"os"
	"testing"
	"unsafe"

	"github.com/fsbind/linuxfs/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// capturingCaller records the one system call made through it and answers
// with a scripted result.
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

// goString reads the NUL terminated string the kernel would see. The address
// belongs to a caller still blocked in the fake, so the memory is live.
func goString(p uintptr) string {
	var out []byte
	for {
		b := *(*byte)(unsafe.Pointer(p))
		if b == 0 {
			return string(out)
		}
		out = append(out, b)
		p++
	}
}

func (c *capturingCaller) how() OpenHow {
	return *(*OpenHow)(unsafe.Pointer(c.args[2]))
}

func TestOpenBuildsArguments(t *testing.T) {
	caller := &capturingCaller{r1: 33}
	client := New(SetCaller(caller))

	fd, err := client.Open(dispatch.FD(7), "etc/passwd",
		SetFlags(unix.O_RDONLY|unix.O_CLOEXEC),
		SetResolve(ResolveBeneath|ResolveNoSymlinks),
	)
	require.NoError(t, err)
	assert.Equal(t, 33, fd)

	assert.Equal(t, uintptr(unix.SYS_OPENAT2), caller.trap)
	assert.Equal(t, uintptr(7), caller.args[0])
	assert.Equal(t, "etc/passwd", goString(caller.args[1]))

	how := caller.how()
	assert.Equal(t, uint64(unix.O_RDONLY|unix.O_CLOEXEC), how.Flags)
	assert.Equal(t, uint64(0), how.Mode)
	assert.Equal(t, uint64(ResolveBeneath|ResolveNoSymlinks), how.Resolve)

	assert.Equal(t, unsafe.Sizeof(OpenHow{}), caller.args[3])
	assert.Equal(t, uintptr(0), caller.args[4])
	assert.Equal(t, uintptr(0), caller.args[5])
}

func TestOpenDefaults(t *testing.T) {
	caller := &capturingCaller{}
	client := New(SetCaller(caller))

	_, err := client.Open(nil, "somefile")
	require.NoError(t, err)

	// No dirfd means the current working directory.
	dirfd := unix.AT_FDCWD
	assert.Equal(t, uintptr(dirfd), caller.args[0])

	// No options means a plain read-only open with no restrictions.
	assert.Equal(t, OpenHow{}, caller.how())
}

func TestOpenMode(t *testing.T) {
	caller := &capturingCaller{}
	client := New(SetCaller(caller))

	_, err := client.Open(nil, "newfile",
		SetFlags(unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL),
		SetMode(0o640),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(0o640), caller.how().Mode)
}

func TestOpenRejectsEmbeddedNUL(t *testing.T) {
	caller := &capturingCaller{}
	client := New(SetCaller(caller))

	fd, err := client.Open(nil, "bad\x00path")
	require.Error(t, err)
	assert.ErrorContains(t, err, "error encoding path")
	assert.Equal(t, -1, fd)
	assert.Zero(t, caller.calls, "no system call should be attempted")
}

func TestOpenSurfacesRestrictionErrnos(t *testing.T) {
	// The kernel reports a violated restriction through a specific errno;
	// each must survive the wrapping so callers can branch on it.
	for _, errno := range []unix.Errno{unix.ELOOP, unix.EXDEV, unix.EAGAIN} {
		caller := &capturingCaller{errno: errno}
		client := New(SetCaller(caller))

		fd, err := client.Open(nil, "guarded/path", SetResolve(ResolveBeneath))
		require.Error(t, err)
		assert.Equal(t, -1, fd)
		assert.ErrorIs(t, err, errno)
		assert.ErrorContains(t, err, "openat2")
		assert.ErrorContains(t, err, "error opening guarded/path")
	}
}

func TestOpenFile(t *testing.T) {
	// Borrow a real descriptor so closing the returned file is harmless.
	fd, err := unix.Open(os.DevNull, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.NoError(t, err, "error during test setup")

	caller := &capturingCaller{r1: uintptr(fd)}
	client := New(SetCaller(caller))

	f, err := client.OpenFile(nil, "null-alias")
	require.NoError(t, err)
	assert.Equal(t, uintptr(fd), f.Fd())
	assert.Equal(t, "null-alias", f.Name())
	require.NoError(t, f.Close())
}

func TestOpenHowLayout(t *testing.T) {
	// struct open_how is three u64 words; the size travels with every call
	// so the kernel can version the struct.
	assert.Equal(t, uintptr(24), unsafe.Sizeof(OpenHow{}))
}

func TestResolveString(t *testing.T) {
	assert.Equal(t, "none", Resolve(0).String())
	assert.Equal(t, "no-symlinks|beneath", (ResolveNoSymlinks | ResolveBeneath).String())
	assert.Equal(t, "in-root|0x40", (ResolveInRoot | Resolve(0x40)).String())
}

func TestResolveValuesMatchKernelHeader(t *testing.T) {
	assert.EqualValues(t, unix.RESOLVE_NO_XDEV, ResolveNoXDev)
	assert.EqualValues(t, unix.RESOLVE_NO_MAGICLINKS, ResolveNoMagicLinks)
	assert.EqualValues(t, unix.RESOLVE_NO_SYMLINKS, ResolveNoSymlinks)
	assert.EqualValues(t, unix.RESOLVE_BENEATH, ResolveBeneath)
	assert.EqualValues(t, unix.RESOLVE_IN_ROOT, ResolveInRoot)
	assert.EqualValues(t, unix.RESOLVE_CACHED, ResolveCached)
}
