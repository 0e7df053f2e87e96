package fsattr

// The fsxattr aggregate from uapi/linux/fs.h and the operations that
// transfer it. The aggregate carries the FS_XFLAG_* bits, the extent
// allocator hints, and the project quota identifier.

import (
	"fmt"
	"math/bits"
	"strings"
	"unsafe"

	"github.com/dsnet/golib/unitconv"
	"github.com/fsbind/linuxfs/dispatch"
	"go.uber.org/zap"
)

// XFlags are the fsx_xflags bits (FS_XFLAG_* in fs.h) of the fsxattr
// aggregate.
type XFlags uint32

const (
	XFlagRealtime     XFlags = 0x00000001 // FS_XFLAG_REALTIME: data in realtime volume
	XFlagPrealloc     XFlags = 0x00000002 // FS_XFLAG_PREALLOC: preallocated file extents
	XFlagImmutable    XFlags = 0x00000008 // FS_XFLAG_IMMUTABLE: file cannot be modified
	XFlagAppend       XFlags = 0x00000010 // FS_XFLAG_APPEND: all writes append
	XFlagSync         XFlags = 0x00000020 // FS_XFLAG_SYNC: all writes synchronous
	XFlagNoATime      XFlags = 0x00000040 // FS_XFLAG_NOATIME: do not update access time
	XFlagNoDump       XFlags = 0x00000080 // FS_XFLAG_NODUMP: do not include in backups
	XFlagRtInherit    XFlags = 0x00000100 // FS_XFLAG_RTINHERIT: create with rt bit set
	XFlagProjInherit  XFlags = 0x00000200 // FS_XFLAG_PROJINHERIT: create with parent's project id
	XFlagNoSymlinks   XFlags = 0x00000400 // FS_XFLAG_NOSYMLINKS: disallow symlink creation
	XFlagExtSize      XFlags = 0x00000800 // FS_XFLAG_EXTSIZE: extent size allocator hint
	XFlagExtSzInherit XFlags = 0x00001000 // FS_XFLAG_EXTSZINHERIT: inherit inode extent size
	XFlagNoDefrag     XFlags = 0x00002000 // FS_XFLAG_NODEFRAG: do not defragment
	XFlagFilestream   XFlags = 0x00004000 // FS_XFLAG_FILESTREAM: use filestream allocator
	XFlagDax          XFlags = 0x00008000 // FS_XFLAG_DAX: use DAX for IO
	XFlagCowExtSize   XFlags = 0x00010000 // FS_XFLAG_COWEXTSIZE: CoW extent size allocator hint
	XFlagHasAttr      XFlags = 0x80000000 // FS_XFLAG_HASATTR: inode has extended attributes
)

var xflagNames = []struct {
	flag XFlags
	name string
}{
	{XFlagRealtime, "realtime"},
	{XFlagPrealloc, "prealloc"},
	{XFlagImmutable, "immutable"},
	{XFlagAppend, "append"},
	{XFlagSync, "sync"},
	{XFlagNoATime, "no-atime"},
	{XFlagNoDump, "no-dump"},
	{XFlagRtInherit, "rt-inherit"},
	{XFlagProjInherit, "project-inherit"},
	{XFlagNoSymlinks, "no-symlinks"},
	{XFlagExtSize, "extsize"},
	{XFlagExtSzInherit, "extsize-inherit"},
	{XFlagNoDefrag, "no-defrag"},
	{XFlagFilestream, "filestream"},
	{XFlagDax, "dax"},
	{XFlagCowExtSize, "cow-extsize"},
	{XFlagHasAttr, "has-attr"},
}

// String lists the set bits by name separated by '|', or "none". Bits
// without a name in the fs.h table are collected into a single trailing hex
// value.
func (f XFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := make([]string, 0, bits.OnesCount32(uint32(f)))
	rest := f
	for _, entry := range xflagNames {
		if rest&entry.flag != 0 {
			names = append(names, entry.name)
			rest &^= entry.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%08x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// Fsxattr is the fsxattr aggregate. The arrangement, types, and sizes of the
// fields mirror the kernel struct and the whole value is handed to the
// kernel as one block of memory, so DO NOT rearrange or resize them. The
// trailing pad bytes are opaque to user space; they travel with every copy
// of the value so a fetched aggregate written back reports them to the
// kernel unchanged.
type Fsxattr struct {
	// Flags holds the FS_XFLAG_* bits (get/set).
	Flags XFlags
	// ExtentSize is the extent size hint in bytes, meaningful when
	// XFlagExtSize is set (get/set).
	ExtentSize uint32
	// ExtentCount is the number of extents, maintained by the kernel (get
	// only; ignored on a set).
	ExtentCount uint32
	// ProjectID is the project quota identifier (get/set).
	ProjectID uint32
	// CowExtentSize is the copy on write extent size hint in bytes,
	// meaningful when XFlagCowExtSize is set (get/set).
	CowExtentSize uint32
	pad           [8]byte
}

// String summarizes the aggregate with the extent hints rendered using IEC
// prefixes.
func (x Fsxattr) String() string {
	return fmt.Sprintf("xflags=%s extsize=%sB nextents=%d projid=%d cowextsize=%sB",
		x.Flags,
		unitconv.FormatPrefix(float64(x.ExtentSize), unitconv.IEC, 0),
		x.ExtentCount,
		x.ProjectID,
		unitconv.FormatPrefix(float64(x.CowExtentSize), unitconv.IEC, 0),
	)
}

// A Field sets one member of the aggregate when SetFsxattr is called without
// a base value. The field set is closed and covers exactly the addressable
// members of the kernel struct.
type Field func(*Fsxattr)

// SetXFlags sets the FS_XFLAG_* bits.
func SetXFlags(flags XFlags) Field {
	return func(x *Fsxattr) {
		x.Flags = flags
	}
}

// SetExtentSize sets the extent size hint in bytes. The hint only takes
// effect when the XFlagExtSize bit is also set.
func SetExtentSize(size uint32) Field {
	return func(x *Fsxattr) {
		x.ExtentSize = size
	}
}

// SetExtentCount sets the extent count member. The kernel maintains this
// member itself and ignores the supplied value on a set.
func SetExtentCount(count uint32) Field {
	return func(x *Fsxattr) {
		x.ExtentCount = count
	}
}

// SetProjectID sets the project quota identifier.
func SetProjectID(id uint32) Field {
	return func(x *Fsxattr) {
		x.ProjectID = id
	}
}

// SetCowExtentSize sets the copy on write extent size hint in bytes. The
// hint only takes effect when the XFlagCowExtSize bit is also set.
func SetCowExtentSize(size uint32) Field {
	return func(x *Fsxattr) {
		x.CowExtentSize = size
	}
}

// GetFsxattr returns the fsxattr aggregate of the open file f, including the
// kernel-maintained extent count.
func (c *Client) GetFsxattr(f dispatch.File) (Fsxattr, error) {
	var attrs Fsxattr
	if err := dispatch.Ioctl(c.caller, f, iocFsGetXattr, unsafe.Pointer(&attrs)); err != nil {
		return Fsxattr{}, fmt.Errorf("error getting fsxattr: %w", err)
	}
	c.logger().Debug("read fsxattr", zap.Stringer("attrs", attrs))
	return attrs, nil
}

// SetFsxattr writes the fsxattr aggregate of the open file f. Exactly one
// input form must be used: either a non-nil base aggregate (usually one
// returned by GetFsxattr, changed in place), or one or more Field overrides
// applied to a zeroed aggregate. Supplying neither fails with ErrNoUpdate
// and supplying both fails with ErrAmbiguousUpdate, in both cases before any
// system call is issued.
//
// To change individual members without clearing the rest, fetch first and
// pass the fetched value back as the base:
//
//	attrs, err := client.GetFsxattr(f)
//	if err != nil {
//		return err
//	}
//	attrs.ProjectID = 42
//	return client.SetFsxattr(f, &attrs)
//
// Every member not changed in between, the opaque pad bytes included, is
// written back exactly as the kernel reported it.
func (c *Client) SetFsxattr(f dispatch.File, base *Fsxattr, fields ...Field) error {
	if base == nil && len(fields) == 0 {
		return ErrNoUpdate
	}
	if base != nil && len(fields) > 0 {
		return ErrAmbiguousUpdate
	}
	var attrs Fsxattr
	if base != nil {
		attrs = *base
	}
	for _, field := range fields {
		field(&attrs)
	}
	if err := dispatch.Ioctl(c.caller, f, iocFsSetXattr, unsafe.Pointer(&attrs)); err != nil {
		return fmt.Errorf("error setting fsxattr: %w", err)
	}
	c.logger().Debug("wrote fsxattr", zap.Stringer("attrs", attrs))
	return nil
}
