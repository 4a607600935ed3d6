package source

import "github.com/spf13/afero"

// IdentityFunc returns an opaque, comparable identifier for the file
// currently at path, an inode number on a real filesystem. Tests inject a
// fake IdentityFunc since in-memory filesystems have no inode concept.
type IdentityFunc func(fs afero.Fs, path string) uint64

func inodeOf(fs afero.Fs, path string) uint64 {
	return osInode(fs, path)
}
