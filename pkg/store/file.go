package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"eligos-hq/atlas/pkg/atom"
)

// DefaultTenantID is assigned to file-defined atoms that omit a tenant.
const DefaultTenantID = "default"

// defaultPriority is assigned to definitions that omit a priority.
const defaultPriority = 5

// On disk an atom definition carries its logic as a loose map keyed by the
// atom type's expected fields. Load splits the payload out and parses it
// into the typed union so the rest of the system never sees untyped logic.

// FileSource loads atom definitions from YAML files on disk into a
// MemoryStore. The path can be a single file or a directory; directories
// are walked for .yaml and .yml files, each of which may hold multiple
// definitions as separate YAML documents.
type FileSource struct {
	path   string
	store  *MemoryStore
	logger *slog.Logger
}

// NewFileSource creates a file-based atom source backed by store.
func NewFileSource(path string, store *MemoryStore, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		store:  store,
		logger: logger.With("component", "store.file"),
	}
}

// Store returns the backing store the source loads into.
func (s *FileSource) Store() *MemoryStore { return s.store }

// Load reads all definitions from the configured path and replaces the
// backing store's contents per tenant. Invalid files are skipped with a
// warning so one bad definition cannot take down a reload.
func (s *FileSource) Load(ctx context.Context) (int, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var atoms []*atom.Atom
	if info.IsDir() {
		atoms, err = s.loadDirectory(ctx)
	} else {
		atoms, err = s.loadFile(s.path)
	}
	if err != nil {
		return 0, err
	}

	byTenant := make(map[string][]*atom.Atom)
	for _, a := range atoms {
		byTenant[a.TenantID] = append(byTenant[a.TenantID], a)
	}
	for tenantID, tenantAtoms := range byTenant {
		s.store.Replace(tenantID, tenantAtoms)
	}

	s.logger.Info("loaded atom definitions",
		"path", s.path,
		"atom_count", len(atoms),
		"tenant_count", len(byTenant),
	)
	return len(atoms), nil
}

func (s *FileSource) loadDirectory(ctx context.Context) ([]*atom.Atom, error) {
	var atoms []*atom.Atom

	err := filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		loaded, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("failed to load atom file, skipping",
				"path", path,
				"error", err,
			)
			return nil // Skip invalid files
		}
		atoms = append(atoms, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}

	return atoms, nil
}

func (s *FileSource) loadFile(path string) ([]*atom.Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	var atoms []*atom.Atom
	dec := yaml.NewDecoder(f)
	for {
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode %q: %w", path, err)
		}
		if len(raw) == 0 {
			continue
		}

		a, err := s.materialize(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid definition in %q: %w", path, err)
		}
		atoms = append(atoms, a)
	}

	return atoms, nil
}

// materialize converts one decoded document into a typed atom, applying
// file-format defaults and parsing the loose logic payload into the union.
func (s *FileSource) materialize(raw map[string]interface{}) (*atom.Atom, error) {
	payload, _ := raw["logic"].(map[string]interface{})
	delete(raw, "logic")

	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	var a atom.Atom
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	if a.TenantID == "" {
		a.TenantID = DefaultTenantID
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.Priority == 0 {
		a.Priority = defaultPriority
	}
	if a.Status == "" {
		a.Status = atom.StatusActive
	}

	logic, err := atom.ParseLogic(a.Type, payload)
	if err != nil {
		return nil, fmt.Errorf("atom %q: %w", a.Code, err)
	}
	a.Logic = logic

	return &a, nil
}

// Watch blocks watching the source path for changes, reloading on each
// debounced change batch. It returns when ctx is cancelled. Rapid bursts of
// filesystem events (editor saves, git checkouts) collapse into a single
// reload per debounce window.
func (s *FileSource) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory so atomic rename-based saves are seen.
	watchPath := s.path
	if info, err := os.Stat(s.path); err == nil && !info.IsDir() {
		watchPath = filepath.Dir(s.path)
	}
	if err := watcher.Add(watchPath); err != nil {
		return fmt.Errorf("failed to watch %q: %w", watchPath, err)
	}

	s.logger.Info("watching atom definitions", "path", watchPath, "debounce", debounce)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			if _, err := s.Load(ctx); err != nil {
				s.logger.Error("reload after file change failed", "error", err)
			}
		}
	}
}

// relevant filters watcher events down to YAML writes, creates, removes and
// renames, ignoring editor temp files and hidden files.
func (s *FileSource) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(event.Name)
	return ext == ".yaml" || ext == ".yml"
}
