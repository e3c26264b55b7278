// Package result allocates result ids and maps them onto a sharded directory
// tree under a single root.
package result

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yumyai/roundup/internal/util"
)

const filePrefix = "roundup_web_result_"

type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Allocate returns a fresh result id. Nothing is written until the job runs.
func (s *Store) Allocate() string {
	return uuid.NewString()
}

// PathFor derives <root>/<h0h1>/<h2h3>/roundup_web_result_<id> where h is
// the md5 of the file name, keeping any one directory small.
func (s *Store) PathFor(id string) string {
	name := filePrefix + id
	sum := md5.Sum([]byte(name))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(s.Root, h[0:2], h[2:4], name)
}

// IDFromPath is the inverse of PathFor. It returns "" for paths that are not
// result paths.
func (s *Store) IDFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, filePrefix) {
		return ""
	}
	return strings.TrimPrefix(base, filePrefix)
}

// ValidID reports whether id looks like something Allocate returned.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	return util.FileExists(s.PathFor(id))
}

func (s *Store) NonEmpty(id string) bool {
	if !ValidID(id) {
		return false
	}
	return util.NonEmptyFile(s.PathFor(id))
}

func (s *Store) Read(id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid result id %q", id)
	}
	return os.ReadFile(s.PathFor(id))
}

// Write stores data at the result path, creating shard directories. The file
// appears atomically so pollers never see a partial result.
func (s *Store) Write(id string, data []byte) error {
	return WriteFile(s.PathFor(id), data)
}

// WriteFile writes to an arbitrary result path, as handed to a job.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp result: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close result: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}
