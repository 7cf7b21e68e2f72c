// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package displays

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/reftabs/internal/log"
	"github.com/ManuGH/reftabs/internal/metrics"
)

const reloadDebounce = 200 * time.Millisecond

// file is the on-disk document.
type file struct {
	Displays []Display `yaml:"displays"`
}

// ChangeFunc is called with the keys whose display was added, changed or removed.
type ChangeFunc func(keys []Key)

// FileStore keeps displays in memory, backed by a YAML file that is written
// atomically and reloaded when it changes on disk.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	displays map[Key]Display
	digest   [sha256.Size]byte

	subMu       sync.RWMutex
	subscribers []ChangeFunc

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStore opens the display file at path. A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:     filepath.Clean(path),
		logger:   xglog.WithComponent("displays"),
		displays: make(map[Key]Display),
	}
	if _, err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the display stored under key.
func (s *FileStore) Get(key Key) (Display, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.displays[key]
	if !ok {
		return Display{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return d, nil
}

// Lookup returns the display for a field in viewMode, falling back to the
// default view mode.
func (s *FileStore) Lookup(entityType, bundle, field, viewMode string) (Display, error) {
	if viewMode == "" {
		viewMode = DefaultViewMode
	}
	d, err := s.Get(Key{EntityType: entityType, Bundle: bundle, Field: field, ViewMode: viewMode})
	if errors.Is(err, ErrNotFound) && viewMode != DefaultViewMode {
		return s.Get(Key{EntityType: entityType, Bundle: bundle, Field: field, ViewMode: DefaultViewMode})
	}
	return d, err
}

// List returns all displays ordered by key.
func (s *FileStore) List() []Display {
	s.mu.RLock()
	out := make([]Display, 0, len(s.displays))
	for _, d := range s.displays {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sortDisplays(out)
	return out
}

// Len returns the number of displays.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.displays)
}

// Put stores d and writes the file.
func (s *FileStore) Put(ctx context.Context, d Display) (Display, error) {
	d = d.Normalize()
	if err := d.Check(); err != nil {
		return Display{}, err
	}

	s.mu.Lock()
	prev, existed := s.displays[d.Key()]
	s.displays[d.Key()] = d
	if err := s.saveLocked(); err != nil {
		if existed {
			s.displays[d.Key()] = prev
		} else {
			delete(s.displays, d.Key())
		}
		s.mu.Unlock()
		return Display{}, err
	}
	n := len(s.displays)
	s.mu.Unlock()

	metrics.SetDisplaysLoaded(n)
	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "displays.saved").
		Str("display", d.Key().String()).
		Msg("display saved")
	s.publish([]Key{d.Key()})
	return d, nil
}

// Delete removes the display stored under key.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	prev, ok := s.displays[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.displays, key)
	if err := s.saveLocked(); err != nil {
		s.displays[key] = prev
		s.mu.Unlock()
		return err
	}
	n := len(s.displays)
	s.mu.Unlock()

	metrics.SetDisplaysLoaded(n)
	logger := xglog.WithContext(ctx, s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "displays.deleted").
		Str("display", key.String()).
		Msg("display deleted")
	s.publish([]Key{key})
	return nil
}

// Subscribe registers fn for change notifications.
func (s *FileStore) Subscribe(fn ChangeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *FileStore) publish(keys []Key) {
	if len(keys) == 0 {
		return
	}
	s.subMu.RLock()
	subs := append([]ChangeFunc(nil), s.subscribers...)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(keys)
	}
}

// saveLocked writes all displays atomically. The caller holds s.mu.
func (s *FileStore) saveLocked() error {
	list := make([]Display, 0, len(s.displays))
	for _, d := range s.displays {
		list = append(list, d)
	}
	sortDisplays(list)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file{Displays: list}); err != nil {
		return fmt.Errorf("encode displays: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode displays: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create displays dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending displays file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending displays file")
		}
	}()
	if _, err := pending.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write displays: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace displays file: %w", err)
	}
	s.digest = sha256.Sum256(buf.Bytes())
	return nil
}

// Reload rereads the file. Unchanged content is ignored; on error the
// previous displays are kept.
func (s *FileStore) Reload() error {
	changed, err := s.reload()
	metrics.RecordDisplayReload(err == nil)
	if err != nil {
		s.logger.Error().Err(err).
			Str(xglog.FieldEvent, "displays.reload_failed").
			Str(xglog.FieldPath, s.path).
			Msg("display reload failed, keeping previous displays")
		return err
	}
	if len(changed) > 0 {
		s.logger.Info().
			Str(xglog.FieldEvent, "displays.reloaded").
			Int("changed", len(changed)).
			Int("displays", s.Len()).
			Msg("displays reloaded")
		s.publish(changed)
	}
	return nil
}

func (s *FileStore) reload() ([]Key, error) {
	// #nosec G304 -- the display file path comes from operator configuration
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("read displays: %w", err)
	}

	digest := sha256.Sum256(data)
	s.mu.RLock()
	same := digest == s.digest
	s.mu.RUnlock()
	if same {
		return nil, nil
	}

	loaded, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	changed := diff(s.displays, loaded)
	s.displays = loaded
	s.digest = digest
	n := len(loaded)
	s.mu.Unlock()

	metrics.SetDisplaysLoaded(n)
	return changed, nil
}

func decode(data []byte) (map[Key]Display, error) {
	out := make(map[Key]Display)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for i, d := range f.Displays {
		d = d.Normalize()
		if err := d.Check(); err != nil {
			return nil, fmt.Errorf("display %d: %w", i, err)
		}
		if _, dup := out[d.Key()]; dup {
			return nil, fmt.Errorf("display %d: %w: duplicate %s", i, ErrInvalid, d.Key())
		}
		out[d.Key()] = d
	}
	return out, nil
}

func diff(old, cur map[Key]Display) []Key {
	var keys []Key
	for k, d := range cur {
		if prev, ok := old[k]; !ok || prev.Fingerprint() != d.Fingerprint() {
			keys = append(keys, k)
		}
	}
	for k := range old {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func sortDisplays(list []Display) {
	sort.Slice(list, func(i, j int) bool { return list[i].Key().String() < list[j].Key().String() })
}

// Watch reloads the store whenever the file changes until ctx is done or
// Close is called.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("create displays dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch displays dir: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})

	s.logger.Info().
		Str(xglog.FieldEvent, "displays.watch_started").
		Str(xglog.FieldPath, s.path).
		Msg("watching display file")

	go s.watchLoop(ctx)
	return nil
}

func (s *FileStore) watchLoop(ctx context.Context) {
	defer close(s.done)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.watcher.Close()
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || ev.Op == fsnotify.Chmod {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() { _ = s.Reload() })
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Str(xglog.FieldEvent, "displays.watch_error").Msg("display watcher error")
		}
	}
}

// Close stops the watcher, if any.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}
