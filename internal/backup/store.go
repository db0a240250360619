// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// recordsFile is the metadata store inside the archive directory.
const recordsFile = "records.json"

// Store owns the archive directory: it creates tar.gz archives of the save
// directory, tracks their Records in a JSON metadata file, and deletes both
// on request. All methods are safe for concurrent use.
type Store struct {
	dir string

	mu      sync.Mutex
	records []Record
}

// NewStore opens (or initializes) the archive directory and loads existing
// records. Archives present on disk but missing from the metadata file are
// not adopted; the store only manages what it created.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the metadata file, tolerating its absence on first run.
func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, recordsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup records: %w", err)
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("decode backup records: %w", err)
	}
	return nil
}

// persist writes the metadata file. Caller holds s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup records: %w", err)
	}

	tmp := filepath.Join(s.dir, recordsFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write backup records: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, recordsFile)); err != nil {
		return fmt.Errorf("replace backup records: %w", err)
	}
	return nil
}

// List returns all records sorted oldest first.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]Record(nil), s.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// TotalSizeBytes returns the combined size of all tracked archives.
func (s *Store) TotalSizeBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, r := range s.records {
		total += r.SizeBytes
	}
	return total
}

// Create archives sourceDir into a new tar.gz under the store directory and
// records it with the given tier.
func (s *Store) Create(ctx context.Context, sourceDir string, tier Tier) (Record, error) {
	info, err := os.Stat(sourceDir)
	if os.IsNotExist(err) {
		return Record{}, ErrSourceMissing
	}
	if err != nil {
		return Record{}, fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return Record{}, fmt.Errorf("backup source %s is not a directory", sourceDir)
	}

	id := uuid.New().String()
	now := time.Now()
	filename := fmt.Sprintf("backup-%s-%s-%s.tar.gz", tier, now.Format("20060102-150405"), id[:8])
	path := filepath.Join(s.dir, filename)

	checksum, err := s.writeArchive(ctx, path, sourceDir)
	if err != nil {
		os.Remove(path) //nolint:errcheck // Best effort cleanup of a partial archive
		return Record{}, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("stat archive: %w", err)
	}

	rec := Record{
		ID:        id,
		Filename:  filename,
		Path:      path,
		SizeBytes: stat.Size(),
		SHA256:    checksum,
		CreatedAt: now,
		Tier:      tier,
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	err = s.persist()
	s.mu.Unlock()
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// archiveWriters holds the layered writers of one archive. Closers close in
// reverse order so the tar footer and gzip trailer land before the file does.
type archiveWriters struct {
	tarWriter *tar.Writer
	closers   []io.Closer
}

func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func setupArchiveWriters(path string) (*archiveWriters, error) {
	outFile, err := os.Create(path) //nolint:gosec // Path is store-internal
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}

	gzWriter := gzip.NewWriter(outFile)
	aw := &archiveWriters{
		tarWriter: tar.NewWriter(gzWriter),
		closers:   []io.Closer{outFile, gzWriter},
	}
	aw.closers = append(aw.closers, aw.tarWriter)
	return aw, nil
}

// writeArchive streams sourceDir into a tar.gz at path and returns the
// archive's SHA-256.
func (s *Store) writeArchive(ctx context.Context, path, sourceDir string) (checksum string, err error) {
	aw, err := setupArchiveWriters(path)
	if err != nil {
		return "", err
	}
	defer func() {
		closeErr := aw.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = filepath.Walk(sourceDir, func(file string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		// Symlinks and other irregular files are skipped; save directories
		// only meaningfully contain regular files.
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, file)
		if err != nil {
			return err
		}
		return addFileToArchive(aw.tarWriter, file, filepath.ToSlash(rel), info)
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", sourceDir, err)
	}

	// Close before hashing so the gzip trailer is part of the checksum.
	if err = aw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	aw.closers = nil

	return fileChecksum(path)
}

func addFileToArchive(tw *tar.Writer, srcPath, destPath string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header %s: %w", destPath, err)
	}
	hdr.Name = destPath

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %s: %w", destPath, err)
	}

	f, err := os.Open(srcPath) //nolint:gosec // Path comes from walking the configured source
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer f.Close() //nolint:errcheck // Read-side close

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("copy %s: %w", srcPath, err)
	}
	return nil
}

// fileChecksum computes the SHA-256 of a file on disk.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is store-internal
	if err != nil {
		return "", fmt.Errorf("open archive for checksum: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-side close

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes an archive and its record. A missing file is not an error;
// the record is dropped either way so retention passes stay idempotent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("backup %s not found", id)
	}

	rec := s.records[idx]
	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archive %s: %w", rec.Filename, err)
	}

	s.records = append(s.records[:idx], s.records[idx+1:]...)
	if err := s.persist(); err != nil {
		return err
	}

	logging.Debug().
		Str("filename", rec.Filename).
		Str("tier", string(rec.Tier)).
		Msg("Backup archive removed")
	return nil
}

// Extract unpacks an archive into destDir. Entries escaping destDir are
// rejected.
func (s *Store) Extract(ctx context.Context, id, destDir string) error {
	s.mu.Lock()
	var rec *Record
	for i := range s.records {
		if s.records[i].ID == id {
			rec = &s.records[i]
			break
		}
	}
	s.mu.Unlock()
	if rec == nil {
		return fmt.Errorf("backup %s not found", id)
	}

	f, err := os.Open(rec.Path) //nolint:gosec // Path is store-internal
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-side close

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close() //nolint:errcheck // Read-side close

	tr := tar.NewReader(gz)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %s escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return fmt.Errorf("create directory for %s: %w", target, err)
			}
			if err := writeExtractedFile(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}

func writeExtractedFile(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) //nolint:gosec // Target validated against destination root
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer out.Close() //nolint:errcheck // Error captured via Copy below

	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // Archive is store-created, not untrusted input
		return fmt.Errorf("extract %s: %w", target, err)
	}
	return out.Close()
}
