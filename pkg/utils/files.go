package utils

import (
	"io/fs"
	"path/filepath"
)

// DirSize returns the total size in bytes of all regular files under path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
