// Package tmpfile creates anonymous files and gives them a name only once
// their content is complete. An O_TMPFILE file lives on a filesystem but in
// no directory: a crash before Publish leaves nothing to clean up, and other
// processes cannot observe the file half written.
//
//	client := tmpfile.New()
//	f, err := client.Open("/var/lib/app", unix.O_WRONLY, 0o644)
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//
//	if _, err := f.Write(payload); err != nil {
//		return err
//	}
//	if err := f.Sync(); err != nil {
//		return err
//	}
//	return client.Publish(f, "/var/lib/app/state.json")
package tmpfile

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fsbind/linuxfs/dispatch"
)

// linkFunc matches the signature of unix.Linkat so tests can observe the
// exact link request instead of reaching the kernel.
type linkFunc func(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) error

// Client creates and publishes anonymous files. The zero value is ready to
// use and talks to the running kernel.
type Client struct {
	link linkFunc
	log  *zap.Logger
}

type clientOption func(*Client)

// SetLinkat replaces the linkat entry point, usually with a fake for
// testing.
func SetLinkat(link linkFunc) clientOption {
	return func(c *Client) {
		c.link = link
	}
}

// SetLogger sets the logger used for debug output.
func SetLogger(log *zap.Logger) clientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New returns a client configured by the provided options, following
// https://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis.
func New(opts ...clientOption) *Client {
	c := &Client{
		link: unix.Linkat,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var nopLogger = zap.NewNop()

func (c *Client) logger() *zap.Logger {
	if c.log == nil {
		return nopLogger
	}
	return c.log
}

func (c *Client) linkat(olddirfd int, oldpath string, newdirfd int, newpath string, flags int) error {
	if c.link == nil {
		return unix.Linkat(olddirfd, oldpath, newdirfd, newpath, flags)
	}
	return c.link(olddirfd, oldpath, newdirfd, newpath, flags)
}

// Open creates an anonymous file on the filesystem holding dir. The flags
// must include O_WRONLY or O_RDWR; O_EXCL additionally makes the file
// impossible to link, so a file meant for Publish must not carry it. perm
// applies when the file later gains a name.
//
// Filesystems without O_TMPFILE support answer EOPNOTSUPP, and kernels
// before 3.11 answer EISDIR or EINVAL. Neither is retried or rewritten
// here; callers that want a fallback can branch on the code.
func (c *Client) Open(dir string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(dir, unix.O_TMPFILE|flag, perm)
	if err != nil {
		return nil, fmt.Errorf("error opening anonymous file in %s: %w", dir, err)
	}
	c.logger().Debug("opened anonymous file",
		zap.String("dir", dir),
		zap.Uintptr("fd", f.Fd()),
	)
	return f, nil
}

// Publish gives the anonymous file behind f a name. The descriptor is linked
// into place through its /proc/self/fd entry, which works without
// CAP_DAC_READ_SEARCH; linkat's AT_EMPTY_PATH form reaches the same inode
// but needs that capability.
//
// The destination must not exist (EEXIST) and must live on the same
// filesystem as the file (EXDEV); both come back unmodified. The file keeps
// its descriptor and stays usable after publishing.
func (c *Client) Publish(f dispatch.File, dest string) error {
	if dest == "" {
		return ErrNoDestination
	}

	fd := f.Fd()
	err := c.linkat(unix.AT_FDCWD, fmt.Sprintf("/proc/self/fd/%d", fd), unix.AT_FDCWD, dest, unix.AT_SYMLINK_FOLLOW)
	// f must not be finalized while the kernel resolves the proc entry, or
	// the descriptor could be closed mid-call.
	runtime.KeepAlive(f)
	if err != nil {
		return fmt.Errorf("error publishing descriptor %d to %s: %w", fd, dest, err)
	}

	c.logger().Debug("published anonymous file",
		zap.Uintptr("fd", fd),
		zap.String("dest", dest),
	)
	return nil
}
