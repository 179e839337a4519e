package file

import (
	"os"
	"strings"
)

// isNotEmptyErrno reports whether err is the OS's "directory not empty"
// error, checked by message rather than a build-tagged syscall.Errno
// comparison so the backend stays portable across platforms.
func isNotEmptyErrno(err *os.PathError) bool {
	return strings.Contains(strings.ToLower(err.Err.Error()), "not empty")
}
