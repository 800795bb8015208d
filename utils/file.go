package utils

import (
	"os"
	"time"
)

// DirExists returns true if the given path exists and is a directory.
func DirExists(filename string) bool {
	fileInfo, err := os.Stat(filename)
	return err == nil && fileInfo.IsDir()
}

// Exists returns true if the given path exists and is a regular file.
func Exists(filename string) bool {
	fileInfo, err := os.Stat(filename)
	return err == nil && fileInfo.Mode().IsRegular()
}

// ModTime returns the modification time of the file, or the zero time when
// it cannot be stat'ed.
func ModTime(filename string) time.Time {
	fileInfo, err := os.Stat(filename)
	if err != nil {
		return time.Time{}
	}
	return fileInfo.ModTime()
}
