// Package resources loads sample data referenced by audio clips.
package resources

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Store holds resource blobs addressed by slash separated paths.
type Store interface {
	Get(p string) ([]byte, error)
	Put(p string, data []byte) error
	List() ([]string, error)
}

// Clean normalizes p and rejects paths escaping the store root.
func Clean(p string) (string, error) {
	c := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))[1:]
	if c == "" || c == "." {
		return "", fault.Wrap(fault.New("resources: empty path"), ftag.With(ftag.InvalidArgument))
	}
	return c, nil
}

// DirStore keeps resources as files below a directory.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore { return &DirStore{root: root} }

func (d *DirStore) file(p string) (string, error) {
	c, err := Clean(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(c)), nil
}

func (d *DirStore) Get(p string) ([]byte, error) {
	f, err := d.file(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Wrap(err, fmsg.With("resources: "+p), ftag.With(ftag.NotFound))
	}
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("resources: read "+p))
	}
	return data, nil
}

func (d *DirStore) Put(p string, data []byte) error {
	f, err := d.file(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
		return fault.Wrap(err, fmsg.With("resources: mkdir for "+p))
	}
	if err := os.WriteFile(f, data, 0o644); err != nil {
		return fault.Wrap(err, fmsg.With("resources: write "+p))
	}
	return nil
}

func (d *DirStore) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(f string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, f)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("resources: list "+d.root))
	}
	sort.Strings(out)
	return out, nil
}

// MemoryStore keeps resources in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (m *MemoryStore) Get(p string) ([]byte, error) {
	c, err := Clean(p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[c]
	if !ok {
		return nil, fault.Wrap(fault.New("resources: "+c+" not found"), ftag.With(ftag.NotFound))
	}
	return data, nil
}

func (m *MemoryStore) Put(p string, data []byte) error {
	c, err := Clean(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.files[c] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
