package object

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmertens/storefront-media/internal/infra/logging"
)

var (
	ErrBytesWrittenMismatch = errors.New("bytes written mismatch")
	ErrInvalidContainerName = errors.New("invalid container name")
	ErrInvalidObjectName    = errors.New("invalid object name")
)

// FileSystemStoreConfig holds configuration for the filesystem-backed store.
type FileSystemStoreConfig struct {
	// Basedir is the root directory for stored objects
	Basedir string `env:"BASEDIR" default:"var/storage/media"`
}

// FileSystemStore implements Store on the local filesystem. Each owner gets
// a container directory under Basedir; objects are written to a temp file,
// fsynced, size-verified and renamed into place so a failed write never
// leaves a partial object.
type FileSystemStore struct {
	cfg FileSystemStoreConfig
	log logging.Logger
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates a FileSystemStore rooted at cfg.Basedir,
// creating the root directory if needed.
func NewFileSystemStore(ctx context.Context, cfg FileSystemStoreConfig) (*FileSystemStore, error) {
	log := logging.GetLogger("repo.object.filesystem_store").With(
		logging.Group("store", "basedir", cfg.Basedir),
	)

	store := &FileSystemStore{
		cfg: cfg,
		log: log,
	}

	if err := os.MkdirAll(cfg.Basedir, 0o755); err != nil {
		log.ErrorContext(ctx, "init store failed", "error", err)

		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	log.DebugContext(ctx, "store initialized")

	return store, nil
}

// EnsureContainer implements Store.EnsureContainer.
func (fsStore *FileSystemStore) EnsureContainer(ctx context.Context, owner string) (err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("container", "owner", owner))
		if err != nil {
			log.ErrorContext(ctx, "ensure container failed", "error", err)
		} else {
			log.DebugContext(ctx, "container ensured")
		}
	}()

	dir, err := fsStore.containerDir(owner)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// WriteObject implements Store.WriteObject.
func (fsStore *FileSystemStore) WriteObject(
	ctx context.Context,
	owner, name string,
	data []byte,
) (relPath string, err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("object", "owner", owner, "name", name))
		if err != nil {
			log.ErrorContext(ctx, "object write failed", "error", err)
		} else {
			log.DebugContext(ctx, "object written", "size", len(data), "path", relPath)
		}
	}()

	if err := checkName(name); err != nil {
		return "", err
	}

	dir, err := fsStore.containerDir(owner)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir all: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
		return "", err
	}

	return filepath.ToSlash(filepath.Join(owner, name)), nil
}

// RemoveObject implements Store.RemoveObject.
func (fsStore *FileSystemStore) RemoveObject(ctx context.Context, owner, name string) (err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("object", "owner", owner, "name", name))
		if err != nil {
			log.ErrorContext(ctx, "object remove failed", "error", err)
		} else {
			log.DebugContext(ctx, "object removed")
		}
	}()

	if err := checkName(name); err != nil {
		return err
	}

	dir, err := fsStore.containerDir(owner)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

// RemoveContainer implements Store.RemoveContainer.
func (fsStore *FileSystemStore) RemoveContainer(ctx context.Context, owner string) (err error) {
	defer func() {
		log := fsStore.log.With(logging.Group("container", "owner", owner))
		if err != nil {
			log.ErrorContext(ctx, "container remove failed", "error", err)
		} else {
			log.DebugContext(ctx, "container removed")
		}
	}()

	dir, err := fsStore.containerDir(owner)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove all: %w", err)
	}

	return nil
}

// containerDir resolves the owner's container directory. Owner identifiers
// come from the application, not from uploads, but path metacharacters are
// still rejected so a compromised caller cannot escape Basedir.
func (fsStore *FileSystemStore) containerDir(owner string) (string, error) {
	if owner == "" || strings.ContainsAny(owner, `/\`) || strings.Contains(owner, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidContainerName, owner)
	}

	return filepath.Join(fsStore.cfg.Basedir, owner), nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}

	return nil
}

// writeFileAtomic writes data to a hidden temp file in the target
// directory, fsyncs, verifies the size on disk and renames into place.
// The temp file is removed on any failure.
func writeFileAtomic(filename string, data []byte) (err error) {
	tmpname := filepath.Join(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp")

	defer func() {
		if err != nil {
			_ = os.Remove(tmpname)
		}
	}()

	file, err := os.OpenFile(tmpname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if n, err := file.Write(data); err != nil {
		_ = file.Close()

		return fmt.Errorf("write: %w", err)
	} else if err := file.Sync(); err != nil {
		_ = file.Close()

		return fmt.Errorf("sync: %w", err)
	} else if info, err := file.Stat(); err != nil {
		_ = file.Close()

		return fmt.Errorf("stat: %w", err)
	} else if int64(n) != info.Size() || n != len(data) {
		_ = file.Close()

		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, len(data), n)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpname, filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
