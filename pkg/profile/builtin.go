package profile

import (
	"embed"
	"io/fs"
)

//go:embed builtin/*.nand
var builtinFS embed.FS

// Builtin returns a repository with the shipped profiles.
func Builtin() (*MemoryRepository, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	r := NewMemoryRepository()
	if err := r.LoadFS(sub); err != nil {
		return nil, err
	}
	return r, nil
}

// Load returns the built-in profiles overridden by those found in dirs.
func Load(dirs ...string) (*MemoryRepository, error) {
	r, err := Builtin()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := r.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}
