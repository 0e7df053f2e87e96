package fsattr

// The filesystem label operations (FS_IOC_GETFSLABEL/FS_IOC_SETFSLABEL).
// Labels belong to the filesystem instance, not to the inode: any open file
// inside a filesystem addresses that filesystem's label.

import (
	"fmt"
	"unsafe"

	"github.com/fsbind/linuxfs/dispatch"
	"go.uber.org/zap"
)

// GetLabel returns the label of the filesystem containing the open file f,
// or an empty string if no label is set.
func (c *Client) GetLabel(f dispatch.File) (string, error) {
	var label labelArg
	if err := dispatch.Ioctl(c.caller, f, iocGetFSLabel, unsafe.Pointer(&label)); err != nil {
		return "", fmt.Errorf("error getting filesystem label: %w", err)
	}
	return string(label[:cStringLen(label[:])]), nil
}

// SetLabel replaces the label of the filesystem containing the open file f.
// Labels of FSLabelMax bytes or more fail with ErrLabelTooLong before any
// system call is issued (the buffer must still hold the terminating NUL).
// Most filesystems enforce their own shorter limit with EINVAL, and changing
// a label requires CAP_SYS_ADMIN.
func (c *Client) SetLabel(f dispatch.File, label string) error {
	if len(label) >= FSLabelMax {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrLabelTooLong, len(label), FSLabelMax-1)
	}
	var buf labelArg
	copy(buf[:], label)
	if err := dispatch.Ioctl(c.caller, f, iocSetFSLabel, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("error setting filesystem label: %w", err)
	}
	c.logger().Debug("wrote filesystem label", zap.String("label", label))
	return nil
}
