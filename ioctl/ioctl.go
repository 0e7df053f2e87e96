// Package ioctl implements the request code encoding used by the Linux
// ioctl(2) system call. It is the Go equivalent of the C macros defined by the
// kernel's user space API (UAPI) in asm-generic/ioctl.h.
//
// A request code packs four fields into a single 32-bit value:
//
//	bits    meaning
//	31-30   direction of the data transfer (none, write, read, or both)
//	29-16   size of the argument structure in bytes
//	15-8    type, an identifier (usually an ASCII character) unique to a
//	        driver or subsystem
//	7-0     command number within the type
//
// For example 0x80086601 decodes as a read of an 8 byte argument, type 'f',
// command number 1, which is FS_IOC_GETFLAGS on a 64-bit platform.
package ioctl

import "fmt"

const (
	_ioc_nrbits   = 8
	_ioc_typebits = 8

	// These may need to be updated for specific architectures:
	_ioc_sizebits = 14
	_ioc_dirbits  = 2

	_ioc_nrmask   = 1<<_ioc_nrbits - 1
	_ioc_typemask = 1<<_ioc_typebits - 1
	_ioc_sizemask = 1<<_ioc_sizebits - 1
	_ioc_dirmask  = 1<<_ioc_dirbits - 1

	_ioc_nrshift   = 0
	_ioc_typeshift = _ioc_nrshift + _ioc_nrbits
	_ioc_sizeshift = _ioc_typeshift + _ioc_typebits
	_ioc_dirshift  = _ioc_sizeshift + _ioc_sizebits
)

// Dir is the direction of the data transfer encoded in a request code.
// Direction bits may also need to be updated for specific architectures.
type Dir uint32

const (
	// DirNone indicates no data is transferred with the request.
	DirNone Dir = 0
	// DirWrite indicates userland is writing and the kernel is reading.
	DirWrite Dir = 1
	// DirRead indicates userland is reading and the kernel is writing.
	DirRead Dir = 2
)

// Request is a complete ioctl request code ready to be used as the second
// argument of an ioctl(2) system call. Request codes are plain values. They
// are computed once (typically in a var block at package initialization) and
// are safe to share between goroutines.
type Request uint32

// IOC replicates the functionality of the _IOC macro from C. Typically you do
// not want to use IOC directly, but instead use it through IO, IOR, IOW, or
// IOWR. It combines the individual pieces of information into a single request
// code using bitwise operations.
//
// Parameters:
//   - dir: the direction of data transfer. One of DirNone, DirWrite, DirRead,
//     or DirWrite|DirRead for bidirectional requests.
//   - typ: the magic number or type identifier for the request. This is
//     specific to the driver or subsystem handling the request, for example
//     'f' for the file attribute requests in linux/fs.h.
//   - nr: the command number within the type. Each request within a given
//     type should have a unique number.
//   - size: the size of the argument structure involved in the request (if
//     any). Derive this from unsafe.Sizeof on the Go struct whose layout
//     matches the kernel's argument so the code always reflects the real
//     memory layout.
//
// Field values are not masked to their encoded widths. Passing an oversize
// value is a bug at the call site and would corrupt neighboring fields, so
// callers must stay within the widths documented by Request.
//
// Example:
//
//	req := ioctl.IOC(ioctl.DirRead, 'f', 1, uint32(unsafe.Sizeof(arg)))
func IOC(dir Dir, typ, nr, size uint32) Request {
	return Request(uint32(dir)<<_ioc_dirshift | typ<<_ioc_typeshift | nr<<_ioc_nrshift | size<<_ioc_sizeshift)
}

// IO replicates the functionality of the _IO macro from C. It is used for
// creating request codes for operations that transfer no data, where the
// argument (if any) is passed by value rather than through a pointer.
func IO(typ, nr uint32) Request {
	return IOC(DirNone, typ, nr, 0)
}

// IOR replicates the functionality of the _IOR macro from C. It is used for
// creating request codes for operations that read data from the kernel (i.e.,
// data is transferred from kernel to user space), such as FS_IOC_GETFLAGS.
func IOR(typ, nr, size uint32) Request {
	return IOC(DirRead, typ, nr, size)
}

// IOW replicates the functionality of the _IOW macro from C. It is used for
// creating request codes for operations that write data to the kernel (i.e.,
// data is transferred from user space to kernel), such as FS_IOC_SETFLAGS.
func IOW(typ, nr, size uint32) Request {
	return IOC(DirWrite, typ, nr, size)
}

// IOWR replicates the functionality of the _IOWR macro from C. It is used for
// creating request codes for operations where data is transferred in both
// directions.
func IOWR(typ, nr, size uint32) Request {
	return IOC(DirWrite|DirRead, typ, nr, size)
}

// Functions that are the equivalent of the C decoding macros (_IOC_DIR and
// friends). Unlike the constructors these mask their result, so they return
// the decoded field even if the surrounding bits of the request are garbage.

// Dir returns the direction field of the request.
func (r Request) Dir() Dir {
	return Dir(r >> _ioc_dirshift & _ioc_dirmask)
}

// Type returns the type (magic number) field of the request.
func (r Request) Type() uint32 {
	return uint32(r >> _ioc_typeshift & _ioc_typemask)
}

// Nr returns the command number field of the request.
func (r Request) Nr() uint32 {
	return uint32(r >> _ioc_nrshift & _ioc_nrmask)
}

// Size returns the argument size field of the request in bytes.
func (r Request) Size() uint32 {
	return uint32(r >> _ioc_sizeshift & _ioc_sizemask)
}

// String renders the request as its hex value followed by the decoded fields,
// the same presentation used by the kernel's ioctl-decoding documentation and
// strace. The type is printed as a character when it is printable ASCII.
func (r Request) String() string {
	var dir string
	switch r.Dir() {
	case DirNone:
		dir = "none"
	case DirWrite:
		dir = "write"
	case DirRead:
		dir = "read"
	default:
		dir = "read/write"
	}
	if typ := r.Type(); typ >= 0x20 && typ < 0x7f {
		return fmt.Sprintf("0x%08x (%s '%c' nr=%d size=%d)", uint32(r), dir, typ, r.Nr(), r.Size())
	}
	return fmt.Sprintf("0x%08x (%s type=0x%02x nr=%d size=%d)", uint32(r), dir, r.Type(), r.Nr(), r.Size())
}
