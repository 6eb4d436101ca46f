// Package reliability backs up the results database and keeps the estimate
// cache bounded.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/database"
)

const (
	backupPrefix     = "magicfactory-backup-"
	backupSuffix     = ".tar.gz"
	backupTimeLayout = "2006-01-02-150405"
	metadataFile     = "backup-metadata.json"

	// MinBackupsToKeep survive rotation regardless of age.
	MinBackupsToKeep = 3
)

// Uploader stores a backup archive remotely. *archive.Client satisfies it.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, key string, body io.Reader) (location string, err error)
}

// BackupService snapshots databases into tar.gz archives kept in a local
// directory and, when an uploader is enabled, copied to object storage.
type BackupService struct {
	databases []*database.DB
	dir       string
	uploader  Uploader
	version   string
	log       zerolog.Logger
	now       func() time.Time
}

// BackupMetadata contains metadata about a backup
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata contains metadata about a single database in the backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes one archive in the backup directory
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	Location  string    `json:"location,omitempty"`
}

// NewBackupService creates a backup service writing archives to dir.
// uploader may be nil.
func NewBackupService(databases []*database.DB, dir string, uploader Uploader, version string, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		dir:       dir,
		uploader:  uploader,
		version:   version,
		log:       log.With().Str("service", "backup").Logger(),
		now:       time.Now,
	}
}

// CreateBackup snapshots every database with VACUUM INTO, packs the copies
// with a checksum manifest and uploads the archive if remote storage is
// configured. A failed upload is logged; the local archive remains.
func (s *BackupService) CreateBackup(ctx context.Context) (*BackupInfo, error) {
	s.log.Info().Msg("Starting backup")
	startTime := s.now()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	stagingDir, err := os.MkdirTemp(s.dir, "staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp: startTime.UTC(),
		Version:   s.version,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}
	files := make([]string, 0, len(s.databases)+1)

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		dbPath := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", db.Name()).Msg("Backing up database")
		if err := snapshot(ctx, db, dbPath); err != nil {
			return nil, fmt.Errorf("failed to backup %s: %w", db.Name(), err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s backup: %w", db.Name(), err)
		}
		checksum, err := calculateChecksum(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFile), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFile)

	archiveName := backupPrefix + startTime.Format(backupTimeLayout) + backupSuffix
	archivePath := filepath.Join(s.dir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	backup := &BackupInfo{
		Filename:  archiveName,
		Path:      archivePath,
		Timestamp: startTime,
		SizeBytes: archiveInfo.Size(),
	}

	if s.uploader != nil && s.uploader.Enabled() {
		location, err := s.upload(ctx, archivePath)
		if err != nil {
			s.log.Error().Err(err).Str("archive", archiveName).Msg("Backup upload failed, keeping local copy")
		} else {
			backup.Location = location
		}
	}

	s.log.Info().
		Dur("duration_ms", s.now().Sub(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", backup.SizeBytes).
		Str("location", backup.Location).
		Msg("Backup completed successfully")

	return backup, nil
}

func (s *BackupService) upload(ctx context.Context, archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.uploader.Upload(ctx, path.Join("backups", filepath.Base(archivePath)), f)
}

// ListBackups lists the archives in the backup directory, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, backupSuffix) {
			continue
		}

		raw := strings.TrimSuffix(strings.TrimPrefix(filename, backupPrefix), backupSuffix)
		timestamp, err := time.ParseInLocation(backupTimeLayout, raw, time.Local)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		backups = append(backups, BackupInfo{
			Filename:  filename,
			Path:      filepath.Join(s.dir, filename),
			Timestamp: timestamp,
			SizeBytes: size,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes local archives older than the retention period.
// The newest MinBackupsToKeep are always kept; retentionDays 0 keeps all.
func (s *BackupService) RotateOldBackups(retentionDays int) (int, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if retentionDays <= 0 || len(backups) <= MinBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[MinBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(backup.Path); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", backup.Filename).Time("timestamp", backup.Timestamp).Msg("Deleted old backup")
		deleted++
	}
	return deleted, nil
}

// snapshot writes a consistent copy of db to dest.
func snapshot(ctx context.Context, db *database.DB, dest string) error {
	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}
	return nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive creates a tar.gz archive of the named files in sourceDir
func createArchive(archivePath, sourceDir string, files []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range files {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

// addFileToArchive adds a single file to a tar archive
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
