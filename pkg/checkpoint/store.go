package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/models"
	"github.com/pkg/errors"
)

// Store persists one checkpoint per execution identifier.
type Store interface {
	// Save writes or overwrites the checkpoint for cp.ExecutionID.
	Save(cp models.Checkpoint) error
	// Load returns the checkpoint for an execution. A missing checkpoint
	// is signalled through found=false, never through an error.
	Load(executionID string) (cp models.Checkpoint, found bool, err error)
	// Clear removes the checkpoint. Clearing a non-existent checkpoint is
	// not an error.
	Clear(executionID string) error
}

// FileStore keeps checkpoints as pretty-printed JSON documents on local
// disk, one file per execution id, so an operator can inspect them with
// nothing but cat. Writes go through a temp file and rename so a crash
// mid-write never leaves a half-written checkpoint behind.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create checkpoint directory")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(executionID string) string {
	// Execution ids are caller-supplied; keep them from escaping the dir.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(executionID)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) Save(cp models.Checkpoint) error {
	if cp.ExecutionID == "" {
		return errors.New("checkpoint has no execution id")
	}
	cp.SavedAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}
	target := s.path(cp.ExecutionID)
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp checkpoint")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close checkpoint")
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename checkpoint")
	}
	return nil
}

func (s *FileStore) Load(executionID string) (models.Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(executionID))
	if os.IsNotExist(err) {
		return models.Checkpoint{}, false, nil
	}
	if err != nil {
		return models.Checkpoint{}, false, errors.Wrap(err, "read checkpoint")
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return models.Checkpoint{}, false, errors.Wrapf(err, "decode checkpoint for '%s'", executionID)
	}
	return cp, true, nil
}

func (s *FileStore) Clear(executionID string) error {
	err := os.Remove(s.path(executionID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove checkpoint")
	}
	return nil
}
