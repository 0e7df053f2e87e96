package ioctl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEncodeKnownRequests checks the constructors against request codes
// published in kernel headers and documentation. These values are independent
// of the platform because the sizes are given explicitly.
func TestEncodeKnownRequests(t *testing.T) {
	tests := []struct {
		name string
		got  Request
		want Request
	}{
		// BLKRRPART from linux/fs.h: _IO(0x12, 95).
		{"reread partition table", IO(0x12, 95), 0x125f},
		// VFAT_IOCTL_READDIR_BOTH from the kernel's ioctl-decoding.txt:
		// _IOR('r', 1, struct dirent [2]) where the struct array is 0x218 bytes.
		{"vfat readdir", IOR('r', 1, 0x218), 0x82187201},
		// FS_IOC_SETFLAGS on a 64-bit platform: _IOW('f', 2, long).
		{"set inode flags", IOW('f', 2, 8), 0x40086602},
		// FIDEDUPERANGE from linux/fs.h: _IOWR(0x94, 54, struct file_dedupe_range).
		{"dedupe range", IOWR(0x94, 54, 24), 0xc0189436},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got, fmt.Sprintf("%s request mismatch", tt.name))
	}
}

// TestRoundTrip verifies that any combination of in-bounds field values
// survives an encode followed by a decode unchanged.
func TestRoundTrip(t *testing.T) {
	dirs := []Dir{DirNone, DirWrite, DirRead, DirWrite | DirRead}
	types := []uint32{0, 'f', 'v', 0x94, 0xff}
	nrs := []uint32{0, 1, 2, 31, 127, 255}
	sizes := []uint32{0, 1, 4, 8, 28, 256, 0x3fff}

	for _, dir := range dirs {
		for _, typ := range types {
			for _, nr := range nrs {
				for _, size := range sizes {
					req := IOC(dir, typ, nr, size)
					assert.Equal(t, dir, req.Dir())
					assert.Equal(t, typ, req.Type())
					assert.Equal(t, nr, req.Nr())
					assert.Equal(t, size, req.Size())
				}
			}
		}
	}
}

// TestDecodeMasking ensures each decoder only looks at its own bits. A request
// with every bit set must decode to each field's maximum rather than leaking
// neighboring fields into the result.
func TestDecodeMasking(t *testing.T) {
	req := Request(0xffffffff)
	assert.Equal(t, DirWrite|DirRead, req.Dir())
	assert.Equal(t, uint32(0xff), req.Type())
	assert.Equal(t, uint32(0xff), req.Nr())
	assert.Equal(t, uint32(0x3fff), req.Size())
}

func TestConstructorDirections(t *testing.T) {
	assert.Equal(t, DirNone, IO('f', 1).Dir())
	assert.Equal(t, DirRead, IOR('f', 1, 8).Dir())
	assert.Equal(t, DirWrite, IOW('f', 1, 8).Dir())
	assert.Equal(t, DirWrite|DirRead, IOWR('f', 1, 8).Dir())
	// IO never carries an argument size.
	assert.Equal(t, uint32(0), IO('f', 1).Size())
}

func TestRequestString(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{IOR('f', 1, 8), "0x80086601 (read 'f' nr=1 size=8)"},
		{IOW('f', 2, 8), "0x40086602 (write 'f' nr=2 size=8)"},
		{IOR(0x94, 49, 256), "0x81009431 (read type=0x94 nr=49 size=256)"},
		{IO(0x12, 95), "0x0000125f (none type=0x12 nr=95 size=0)"},
		{IOWR(0x94, 54, 24), "0xc0189436 (read/write type=0x94 nr=54 size=24)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.req.String())
	}
}
