// Package dispatch issues Linux system calls by number. The packages built on
// top of it never talk to the kernel directly: every operation is routed
// through a Caller, and tests substitute a fake Caller to observe the exact
// requests and script kernel behavior without needing a file system that
// understands them.
package dispatch

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/fsbind/linuxfs/ioctl"
	"golang.org/x/sys/unix"
)

// File is the source of the file descriptor an operation acts on. It is
// satisfied by *os.File. The descriptor is read once per operation and is
// never retained, duplicated, or closed, so its lifetime stays with the
// caller.
type File interface {
	Fd() uintptr
}

// FD adapts a raw descriptor number (for example one returned by unix.Open)
// so it can be used anywhere a File is expected.
type FD uintptr

// Fd returns the descriptor number.
func (fd FD) Fd() uintptr {
	return uintptr(fd)
}

// Caller executes raw system calls. The production implementation is Sys,
// which is used whenever a nil Caller is supplied. The returned errno is zero
// on success; it is up to the caller to translate a non-zero errno into an
// error that carries the operation context.
type Caller interface {
	Syscall(trap, a1, a2, a3 uintptr) (r1, r2 uintptr, errno unix.Errno)
	Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (r1, r2 uintptr, errno unix.Errno)
}

// Sys is the Caller backed by the real kernel.
type Sys struct{}

func (Sys) Syscall(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
	return unix.Syscall(trap, a1, a2, a3)
}

func (Sys) Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (uintptr, uintptr, unix.Errno) {
	return unix.Syscall6(trap, a1, a2, a3, a4, a5, a6)
}

// Binding ties a system call number to the name used when reporting its
// errors. One immutable Binding exists per distinct system call, and each
// operation built on a Binding owns its own argument marshalling, so two
// system calls never share a wrapper signature by accident.
type Binding struct {
	Name string
	Trap uintptr
}

// The system calls this module dispatches by number. The linkat binding is
// not called by the packages here (they use the named unix.Linkat entry
// point) but records the trap for callers that need the raw form.
var (
	Openat2 = Binding{Name: "openat2", Trap: unix.SYS_OPENAT2}
	Linkat  = Binding{Name: "linkat", Trap: unix.SYS_LINKAT}
)

// Call issues the bound system call through c, or through the real kernel if
// c is nil. Missing arguments are padded with zeros up to the six argument
// registers. A non-zero errno is wrapped together with the system call name
// and the errno number; errors.Is against the unix.Errno still matches so
// callers can branch on specific codes.
//
// Per the unsafe package's conversion rules, an unsafe.Pointer argument must
// be converted to uintptr in the Call expression itself. Call is not one of
// the runtime's special syscall functions, so on top of that rule the caller
// must keep the pointed-to memory reachable until Call returns, typically
// with runtime.KeepAlive after the call.
func (b Binding) Call(c Caller, args ...uintptr) (uintptr, error) {
	if len(args) > 6 {
		return 0, fmt.Errorf("%s: system calls accept at most 6 arguments (got %d)", b.Name, len(args))
	}
	if c == nil {
		c = Sys{}
	}
	var a [6]uintptr
	copy(a[:], args)
	r1, _, errno := c.Syscall6(b.Trap, a[0], a[1], a[2], a[3], a[4], a[5])
	if errno != 0 {
		return r1, fmt.Errorf("%s: %w (errno: %d)", b.Name, errno, int(errno))
	}
	return r1, nil
}

// Ioctl issues an ioctl(2) request against the descriptor provided by f,
// routed through c (or the real kernel if c is nil). The argument is received
// as an unsafe.Pointer rather than a uintptr so it remains visible to the
// garbage collector, and it is kept reachable until the system call returns
// even when the caller's own last use of the memory is the call expression.
func Ioctl(c Caller, f File, req ioctl.Request, arg unsafe.Pointer) error {
	if c == nil {
		c = Sys{}
	}
	_, _, errno := c.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(req), uintptr(arg))
	runtime.KeepAlive(arg)
	if errno != 0 {
		return fmt.Errorf("ioctl %v: %w (errno: %d)", req, errno, int(errno))
	}
	return nil
}
