// Package checkpoint keeps on-disk history snapshots of an editor's state.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/log"
	"github.com/felixgeelhaar/timeline/internal/model"
)

const formatVersion = "1.0"

// Entry is one saved snapshot.
type Entry struct {
	Version      string         `json:"version"`
	ID           string         `json:"id"`
	Label        string         `json:"label,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Fingerprint  string         `json:"fingerprint"`
	Tasks        int            `json:"tasks"`
	Dependencies int            `json:"dependencies"`
	State        model.Snapshot `json:"state"`
}

// Manager handles checkpoint persistence and recovery
type Manager struct {
	dir string
	log *log.Logger
	now func() time.Time
}

// NewManager creates a manager writing into dir.
func NewManager(dir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		dir: dir,
		log: logger.WithComponent("checkpoint"),
		now: time.Now,
	}
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Fingerprint returns the blake3 hash of the snapshot's JSON encoding.
func Fingerprint(s model.Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	hasher := blake3.New()
	if _, err := hasher.Write(data); err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Save writes s as a new checkpoint unless it is identical to the latest
// one. saved reports whether a file was written; the returned entry is the
// new checkpoint or the unchanged latest.
func (m *Manager) Save(s model.Snapshot, label string) (entry *Entry, saved bool, err error) {
	fp, err := Fingerprint(s)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileMarshal, "fingerprint snapshot", err)
	}

	latest, err := m.Latest()
	if err != nil {
		return nil, false, err
	}
	if latest != nil && latest.Fingerprint == fp {
		m.log.Debug("snapshot unchanged, skipping checkpoint", "latest", latest.ID)
		return latest, false, nil
	}

	now := m.now().UTC()
	entry = &Entry{
		Version:      formatVersion,
		ID:           fmt.Sprintf("%s-%s", now.Format("20060102T150405.000000000"), fp[:8]),
		Label:        label,
		CreatedAt:    now,
		Fingerprint:  fp,
		Tasks:        len(s.Tasks),
		Dependencies: len(s.Dependencies),
		State:        s,
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileWriteFailed, "create checkpoint directory", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileMarshal, "encode checkpoint", err)
	}
	if err := os.WriteFile(m.path(entry.ID), data, 0o644); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileWriteFailed, "write checkpoint", err)
	}

	m.log.Info("checkpoint saved", "id", entry.ID, "tasks", entry.Tasks)
	return entry, true, nil
}

// Load reads the checkpoint with the given id.
func (m *Manager) Load(id string) (*Entry, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeFileNotFound, "checkpoint not found: %s", id).
				WithSuggestion("Run 'timeline history list' to see saved checkpoints")
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read checkpoint", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.NewFileUnmarshalError(m.path(id), "JSON", err)
	}
	return &e, nil
}

// Exists checks if a checkpoint exists for the given id
func (m *Manager) Exists(id string) bool {
	_, err := os.Stat(m.path(id))
	return err == nil
}

// Delete removes a checkpoint file. Missing files are ignored.
func (m *Manager) Delete(id string) error {
	if err := os.Remove(m.path(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "delete checkpoint", err)
	}
	return nil
}

// List returns every checkpoint, oldest first.
func (m *Manager) List() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read checkpoint directory", err)
	}

	var out []*Entry
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}
		e, err := m.Load(strings.TrimSuffix(de.Name(), ".json"))
		if err != nil {
			m.log.WithError(err).Warn("skipping unreadable checkpoint", "file", de.Name())
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Latest returns the newest checkpoint, or nil when there is none.
func (m *Manager) Latest() (*Entry, error) {
	all, err := m.List()
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[len(all)-1], nil
}

// Prune deletes the oldest checkpoints so that at most keep remain and
// returns the removed ids. keep <= 0 keeps everything.
func (m *Manager) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for len(all) > keep {
		if err := m.Delete(all[0].ID); err != nil {
			return removed, err
		}
		removed = append(removed, all[0].ID)
		all = all[1:]
	}
	if len(removed) > 0 {
		m.log.Info("pruned checkpoints", "removed", len(removed), "kept", keep)
	}
	return removed, nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}
