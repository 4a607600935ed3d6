//go:build !linux

package source

import "github.com/spf13/afero"

// osInode has no portable meaning off Linux; rotation detection degrades to
// "never rotates" on those platforms; the agent targets Linux hosts.
func osInode(fs afero.Fs, path string) uint64 {
	return 0
}
