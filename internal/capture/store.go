package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"webqa/internal/target"
)

// Store writes artifacts into one directory. Each file name may be written at
// most once per Store; writes are atomic (temp file then rename).
type Store struct {
	dir string

	mu      sync.Mutex
	written map[string]bool
}

// NewStore creates dir if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir, written: make(map[string]bool)}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path joins name onto the store directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// ScreenshotName returns "{name}_{w}x{h}.png" for t.
func ScreenshotName(t target.Target) string {
	return t.ArtifactName() + ".png"
}

// DiffName returns "{name}_diff.png" for t.
func DiffName(t target.Target) string {
	return t.Name + "_diff.png"
}

// ComparisonName returns "{name}_comparison.png" for t.
func ComparisonName(t target.Target) string {
	return t.Name + "_comparison.png"
}

// PathFor returns where t's screenshot lives in this store.
func (s *Store) PathFor(t target.Target) string {
	return s.Path(ScreenshotName(t))
}

// Exists reports whether t's screenshot is present on disk.
func (s *Store) Exists(t target.Target) bool {
	_, err := os.Stat(s.PathFor(t))
	return err == nil
}

// Read loads t's screenshot.
func (s *Store) Read(t target.Target) ([]byte, error) {
	return os.ReadFile(s.PathFor(t))
}

// WriteArtifact stores a captured screenshot under its target's name.
func (s *Store) WriteArtifact(a *Artifact) (string, error) {
	return s.Write(ScreenshotName(a.Target), a.Image)
}

// WritePNG encodes img and stores it as name.
func (s *Store) WritePNG(name string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return s.Write(name, buf.Bytes())
}

// Write stores data as name and returns the full path.
func (s *Store) Write(name string, data []byte) (string, error) {
	s.mu.Lock()
	if s.written[name] {
		s.mu.Unlock()
		return "", fmt.Errorf("%s: %w", name, ErrArtifactExists)
	}
	s.written[name] = true
	s.mu.Unlock()

	path := s.Path(name)
	if err := writeFileAtomic(path, data); err != nil {
		s.mu.Lock()
		delete(s.written, name)
		s.mu.Unlock()
		return "", err
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
