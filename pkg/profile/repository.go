package profile

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// Ext is the file extension LoadDir picks up.
const Ext = ".nand"

// Repository looks profiles up by name.
type Repository interface {
	Lookup(name string) (*Profile, error)
}

// MemoryRepository holds parsed profiles. Later additions replace earlier
// ones with the same name, so a user directory can override built-ins.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]*Profile)}
}

// Add validates and registers p.
func (r *MemoryRepository) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[strings.ToLower(p.Name)] = p
	return nil
}

// Lookup implements Repository. Names are case-insensitive.
func (r *MemoryRepository) Lookup(name string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// All returns every profile sorted by name.
func (r *MemoryRepository) All() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, n := range sortedNames(r.profiles) {
		out = append(out, r.profiles[n])
	}
	return out
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// LoadFiles parses the provided paths and adds every profile they declare.
func (r *MemoryRepository) LoadFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	parser, err := NewParser()
	if err != nil {
		return err
	}
	for _, path := range paths {
		file, err := parser.ParseFile(path)
		if err != nil {
			return fmt.Errorf("profile: %s: %w", path, err)
		}
		if err := r.addFile(file); err != nil {
			return fmt.Errorf("profile: %s: %w", path, err)
		}
	}
	return nil
}

// LoadDir recursively loads all profile files below root.
func (r *MemoryRepository) LoadDir(root string) error {
	parser, err := NewParser()
	if err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isProfileFile(path) {
			return nil
		}
		file, err := parser.ParseFile(path)
		if err != nil {
			return fmt.Errorf("profile: %s: %w", path, err)
		}
		if err := r.addFile(file); err != nil {
			return fmt.Errorf("profile: %s: %w", path, err)
		}
		return nil
	})
}

// LoadFS loads all profile files of fsys, for embedded catalogues.
func (r *MemoryRepository) LoadFS(fsys fs.FS) error {
	parser, err := NewParser()
	if err != nil {
		return err
	}
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isProfileFile(path) {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		file, err := parser.Parse(path, f)
		if err != nil {
			return fmt.Errorf("profile: %s: %w", path, err)
		}
		return r.addFile(file)
	})
}

func (r *MemoryRepository) addFile(f *File) error {
	profiles, err := f.Profiles()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}

func isProfileFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}
