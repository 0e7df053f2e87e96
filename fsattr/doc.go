// Package fsattr reads and writes the Linux file attribute interfaces
// defined in uapi/linux/fs.h: the per-inode attribute flags surfaced by
// lsattr(1) and chattr(1), the inode version (generation number), the
// fsxattr aggregate covering extent hints and project quota membership, and
// the filesystem label. The fsxattr aggregate is unrelated to the user-space
// extended attributes reached through getxattr(2).
//
// Every operation acts on an already opened file descriptor supplied by the
// caller, typically an *os.File. Descriptors are read exactly once per
// operation and are never retained or closed here. Which requests actually
// succeed depends on the filesystem behind the descriptor and on privileges;
// unsupported requests surface the kernel's ENOTTY unmodified.
//
// A Client owns the system call backend for its operations. The common case
// needs no configuration:
//
//	client := fsattr.New()
//	attrs, err := client.GetFsxattr(f)
//	if err != nil {
//		return err
//	}
//	attrs.ProjectID = 42
//	if err := client.SetFsxattr(f, &attrs); err != nil {
//		return err
//	}
package fsattr
