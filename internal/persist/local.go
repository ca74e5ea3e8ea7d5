package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// LocalSink writes under a root directory using temp-file-then-rename.
type LocalSink struct {
	log  *logger.Logger
	root string
}

func NewLocalSink(log *logger.Logger, root string) (*LocalSink, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("output dir required")
	}
	return &LocalSink{log: log.With("component", "LocalSink"), root: root}, nil
}

func (s *LocalSink) Root() string { return s.root }

// Save claims "{name}_{timestamp}" by creating its metadata file exclusively.
// When another run already holds the key, "_2", "_3" and so on are tried.
func (s *LocalSink) Save(ctx context.Context, rec Record) (Location, error) {
	base, err := rec.baseName()
	if err != nil {
		return Location{}, err
	}

	var loc Location
	for attempt := 0; ; attempt++ {
		if attempt == maxKeyAttempts {
			return Location{}, fmt.Errorf("%w: %s", ErrKeyTaken, base)
		}
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		key := candidateKey(base, attempt)
		rec.Metadata.FileKey = key
		meta, err := json.MarshalIndent(rec.Metadata, "", "  ")
		if err != nil {
			return Location{}, fmt.Errorf("encode metadata: %w", err)
		}
		loc = Location{
			XML:      filepath.Join(s.root, filepath.FromSlash(XMLKey(key))),
			Metadata: filepath.Join(s.root, filepath.FromSlash(MetadataKey(key))),
		}
		err = writeFileExclusive(loc.Metadata, meta)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Location{}, fmt.Errorf("write metadata: %w", err)
		}
		if attempt > 0 {
			s.log.Warn("Output key taken; using suffixed key", "key", base, "using", key)
		}
		break
	}

	if err := ctx.Err(); err != nil {
		return Location{Metadata: loc.Metadata}, err
	}
	if err := writeFileAtomic(loc.XML, []byte(rec.XML)); err != nil {
		return Location{Metadata: loc.Metadata}, fmt.Errorf("write xml: %w", err)
	}

	s.log.Info("Behavior tree saved", "xml_path", loc.XML, "metadata_path", loc.Metadata)
	return loc, nil
}

// writeFileAtomic makes data visible at path all at once or not at all.
func writeFileAtomic(path string, data []byte) error {
	return publish(path, data, os.Rename)
}

// writeFileExclusive is writeFileAtomic that fails with fs.ErrExist instead of
// replacing an existing file. The hard link never overwrites its target.
func writeFileExclusive(path string, data []byte) error {
	return publish(path, data, func(tmp, path string) error {
		if err := os.Link(tmp, path); err != nil {
			return err
		}
		_ = os.Remove(tmp)
		return nil
	})
}

// publish writes data to a synced temp file in path's directory and hands it
// to commit. The temp file is removed when anything fails.
func publish(path string, data []byte, commit func(tmp, path string) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return commit(tmp, path)
}
