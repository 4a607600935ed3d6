//go:build linux

package source

import (
	"syscall"

	"github.com/spf13/afero"
)

func osInode(fs afero.Fs, path string) uint64 {
	info, err := fs.Stat(path)
	if err != nil {
		return 0
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return st.Ino
}
