package hwmon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const sysfsRetryDelay = 25 * time.Millisecond

// readInt reads a sysfs attribute holding one integer.
func readInt(path string) (int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return value, nil
}

// writeSysfs writes value to a sysfs attribute. The file is opened without
// O_TRUNC or O_CREATE, which some attributes reject. Permission and existence
// errors are retried until ctx ends: udev may still be adjusting a freshly
// created attribute.
func writeSysfs(ctx context.Context, path, value string) error {
	for {
		err := writeOnce(path, value)
		if err == nil || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(sysfsRetryDelay):
		}
	}
}

func writeOnce(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	if werr == nil && !onSysfs(f) {
		// plain files (fake trees, bind-mounted fixtures) keep stale bytes
		werr = f.Truncate(int64(len(value)))
	}
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func retryable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)
}

func onSysfs(f *os.File) bool {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return true
	}
	return st.Type == unix.SYSFS_MAGIC
}
