package fsattr

// fs.go is the Go equivalent of the file attribute section of the kernel's
// user space API in uapi/linux/fs.h: the FS_IOC_* request codes and the flag
// table they transfer. The request codes are computed through the ioctl
// codec instead of being hard-coded, so each code is always derived from the
// size of the argument the operations in this package actually pass.

import (
	"fmt"
	"math/bits"
	"strings"
	"unsafe"

	"github.com/fsbind/linuxfs/ioctl"
)

// FSLabelMax is the size of the label transfer buffer (FSLABEL_MAX in fs.h),
// including the terminating NUL. The longest storable label is one byte
// shorter.
const FSLabelMax = 256

// labelArg is the char[FSLABEL_MAX] buffer transferred by the label
// requests.
type labelArg [FSLabelMax]byte

// The FS_IOC_* request codes. The flags and version requests transfer a C
// long, so their size field (and with it the whole code) differs between
// 32-bit and 64-bit platforms. Go's int always has the width of C's long on
// Linux, which keeps these codes correct everywhere without build
// constraints.
//
// These are like saying "transfer this many bytes of attribute data for this
// open file", where the type ('f', 'v', 'X', or 0x94) selects the attribute
// family and the number selects the get or set direction within it.
var (
	iocGetFlags   = ioctl.IOR('f', 1, uint32(unsafe.Sizeof(int(0))))
	iocSetFlags   = ioctl.IOW('f', 2, uint32(unsafe.Sizeof(int(0))))
	iocGetVersion = ioctl.IOR('v', 1, uint32(unsafe.Sizeof(int(0))))
	iocSetVersion = ioctl.IOW('v', 2, uint32(unsafe.Sizeof(int(0))))

	// The compat codes a 64-bit kernel accepts from 32-bit programs. No
	// operation here issues them (a Go program always matches the native
	// long width) but they complete the fs.h table and pin down how the
	// same command changes its code with the argument size.
	iocGetFlags32   = ioctl.IOR('f', 1, uint32(unsafe.Sizeof(int32(0))))
	iocSetFlags32   = ioctl.IOW('f', 2, uint32(unsafe.Sizeof(int32(0))))
	iocGetVersion32 = ioctl.IOR('v', 1, uint32(unsafe.Sizeof(int32(0))))
	iocSetVersion32 = ioctl.IOW('v', 2, uint32(unsafe.Sizeof(int32(0))))

	iocFsGetXattr = ioctl.IOR('X', 31, uint32(unsafe.Sizeof(Fsxattr{})))
	iocFsSetXattr = ioctl.IOW('X', 32, uint32(unsafe.Sizeof(Fsxattr{})))

	// 0x94 is the btrfs type identifier. The label requests began as btrfs
	// ioctls and kept their codes when they were generalized to every
	// filesystem.
	iocGetFSLabel = ioctl.IOR(0x94, 49, uint32(unsafe.Sizeof(labelArg{})))
	iocSetFSLabel = ioctl.IOW(0x94, 50, uint32(unsafe.Sizeof(labelArg{})))
)

// InodeFlags are the per-inode attribute flags (FS_*_FL in fs.h) transferred
// by GetFlags and SetFlags. They are the flags listed by lsattr(1). Which
// flags a given inode can carry depends on the filesystem, and several are
// maintained by the kernel or gated behind CAP_LINUX_IMMUTABLE.
type InodeFlags uint32

const (
	FlagSecureDelete     InodeFlags = 0x00000001 // FS_SECRM_FL: secure deletion
	FlagUndelete         InodeFlags = 0x00000002 // FS_UNRM_FL: undelete
	FlagCompress         InodeFlags = 0x00000004 // FS_COMPR_FL: compress file
	FlagSync             InodeFlags = 0x00000008 // FS_SYNC_FL: synchronous updates
	FlagImmutable        InodeFlags = 0x00000010 // FS_IMMUTABLE_FL: immutable file
	FlagAppend           InodeFlags = 0x00000020 // FS_APPEND_FL: writes may only append
	FlagNoDump           InodeFlags = 0x00000040 // FS_NODUMP_FL: do not dump file
	FlagNoATime          InodeFlags = 0x00000080 // FS_NOATIME_FL: do not update atime
	FlagDirty            InodeFlags = 0x00000100 // FS_DIRTY_FL
	FlagCompressedBlocks InodeFlags = 0x00000200 // FS_COMPRBLK_FL: one or more compressed clusters
	FlagNoCompress       InodeFlags = 0x00000400 // FS_NOCOMP_FL: don't compress
	FlagEncrypt          InodeFlags = 0x00000800 // FS_ENCRYPT_FL: encrypted file
	FlagBTree            InodeFlags = 0x00001000 // FS_BTREE_FL: btree format dir
	FlagIndex            InodeFlags = 0x00001000 // FS_INDEX_FL: hash-indexed directory (same bit as FS_BTREE_FL)
	FlagIMagic           InodeFlags = 0x00002000 // FS_IMAGIC_FL: AFS directory
	FlagJournalData      InodeFlags = 0x00004000 // FS_JOURNAL_DATA_FL: journal file data
	FlagNoTail           InodeFlags = 0x00008000 // FS_NOTAIL_FL: file tail should not be merged
	FlagDirSync          InodeFlags = 0x00010000 // FS_DIRSYNC_FL: synchronous directory modifications
	FlagTopDir           InodeFlags = 0x00020000 // FS_TOPDIR_FL: top of directory hierarchies
	FlagHugeFile         InodeFlags = 0x00040000 // FS_HUGE_FILE_FL
	FlagExtent           InodeFlags = 0x00080000 // FS_EXTENT_FL: inode uses extents
	FlagVerity           InodeFlags = 0x00100000 // FS_VERITY_FL: verity protected inode
	FlagEAInode          InodeFlags = 0x00200000 // FS_EA_INODE_FL: inode used for large EA
	FlagEOFBlocks        InodeFlags = 0x00400000 // FS_EOFBLOCKS_FL: reserved for ext4
	FlagNoCow            InodeFlags = 0x00800000 // FS_NOCOW_FL: do not copy on write
	FlagDax              InodeFlags = 0x02000000 // FS_DAX_FL: inode is DAX
	FlagInlineData       InodeFlags = 0x10000000 // FS_INLINE_DATA_FL: reserved for ext4
	FlagProjectInherit   InodeFlags = 0x20000000 // FS_PROJINHERIT_FL: create with parent's project id
	FlagCasefold         InodeFlags = 0x40000000 // FS_CASEFOLD_FL: directory is case insensitive
	FlagReserved         InodeFlags = 0x80000000 // FS_RESERVED_FL: reserved for ext2 lib
)

// The fs.h masks over the flag table. SetFlags does not apply
// FlagsUserModifiable on its own: the kernel answers attempts to change
// privileged bits with EPERM, so masking stays a caller decision.
const (
	FlagsUserVisible    InodeFlags = 0x0003DFFF // FS_FL_USER_VISIBLE
	FlagsUserModifiable InodeFlags = 0x000380FF // FS_FL_USER_MODIFIABLE
)

var inodeFlagNames = []struct {
	flag InodeFlags
	name string
}{
	{FlagSecureDelete, "secure-delete"},
	{FlagUndelete, "undelete"},
	{FlagCompress, "compress"},
	{FlagSync, "sync"},
	{FlagImmutable, "immutable"},
	{FlagAppend, "append"},
	{FlagNoDump, "no-dump"},
	{FlagNoATime, "no-atime"},
	{FlagDirty, "dirty"},
	{FlagCompressedBlocks, "compressed-blocks"},
	{FlagNoCompress, "no-compress"},
	{FlagEncrypt, "encrypted"},
	{FlagIndex, "indexed"},
	{FlagIMagic, "imagic"},
	{FlagJournalData, "journal-data"},
	{FlagNoTail, "no-tail"},
	{FlagDirSync, "dir-sync"},
	{FlagTopDir, "top-dir"},
	{FlagHugeFile, "huge-file"},
	{FlagExtent, "extents"},
	{FlagVerity, "verity"},
	{FlagEAInode, "ea-inode"},
	{FlagEOFBlocks, "eof-blocks"},
	{FlagNoCow, "no-cow"},
	{FlagDax, "dax"},
	{FlagInlineData, "inline-data"},
	{FlagProjectInherit, "project-inherit"},
	{FlagCasefold, "casefold"},
	{FlagReserved, "reserved"},
}

// String lists the set flags by name separated by '|', or "none". Bits
// without a name in the fs.h table are collected into a single trailing hex
// value. The bit shared by FlagBTree and FlagIndex is reported as "indexed".
func (f InodeFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := make([]string, 0, bits.OnesCount32(uint32(f)))
	rest := f
	for _, entry := range inodeFlagNames {
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
