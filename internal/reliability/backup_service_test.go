package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/results"
	testutil "github.com/aristath/magicfactory/internal/testing"
)

type fakeUploader struct {
	enabled bool
	err     error
	keys    []string
	sizes   []int
}

func (u *fakeUploader) Enabled() bool { return u.enabled }

func (u *fakeUploader) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	u.sizes = append(u.sizes, len(raw))
	return "https://bucket.example/" + key, nil
}

func seededResultsDB(t *testing.T) *database.DB {
	t.Helper()
	db := testutil.NewTestDB(t, database.ResultsName)
	repo := results.NewRepository(db, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, repo.CreateRun(ctx, results.Run{
		ID:        "run-1",
		Protocol:  distillation.SmallFootprint15to1,
		Precision: 128,
		Status:    results.RunRunning,
		Total:     3,
		StartedAt: testutil.FixtureDate,
	}))
	require.NoError(t, repo.AppendRows(ctx, "run-1", testutil.NewRowFixtures("run-1")))
	return db
}

// untar extracts an archive into a fresh directory and returns it.
func untar(t *testing.T, archivePath string) string {
	t.Helper()
	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	dir := t.TempDir()
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = io.Copy(&buf, tr)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, hdr.Name), buf.Bytes(), 0644))
	}
	return dir
}

func TestBackupService_CreateBackup(t *testing.T) {
	resultsDB := seededResultsDB(t)
	cacheDB := testutil.NewTestDB(t, database.CacheName)
	uploader := &fakeUploader{enabled: true}
	dir := filepath.Join(t.TempDir(), "backups")

	svc := NewBackupService([]*database.DB{resultsDB, cacheDB}, dir, uploader, "1.0.0", zerolog.Nop())
	backup, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, backup.Path)
	assert.Equal(t, dir, filepath.Dir(backup.Path))
	assert.Regexp(t, `^magicfactory-backup-\d{4}-\d{2}-\d{2}-\d{6}\.tar\.gz$`, backup.Filename)
	require.Len(t, uploader.keys, 1)
	assert.Equal(t, "backups/"+backup.Filename, uploader.keys[0])
	assert.EqualValues(t, backup.SizeBytes, uploader.sizes[0])
	assert.Equal(t, "https://bucket.example/backups/"+backup.Filename, backup.Location)

	extracted := untar(t, backup.Path)
	raw, err := os.ReadFile(filepath.Join(extracted, metadataFile))
	require.NoError(t, err)
	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(raw, &metadata))
	assert.Equal(t, "1.0.0", metadata.Version)
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "results", metadata.Databases[0].Name)
	assert.Equal(t, "cache.db", metadata.Databases[1].Filename)

	checksum, err := calculateChecksum(filepath.Join(extracted, "results.db"))
	require.NoError(t, err)
	assert.Equal(t, metadata.Databases[0].Checksum, checksum)

	// The snapshot is a working database holding the seeded run
	restored, err := database.New(database.Config{Path: filepath.Join(extracted, "results.db"), Name: database.ResultsName})
	require.NoError(t, err)
	defer restored.Close()
	rows, err := results.NewRepository(restored, zerolog.Nop()).ListRows(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory is removed")
}

func TestBackupService_UploadFailureKeepsLocalArchive(t *testing.T) {
	uploader := &fakeUploader{enabled: true, err: errors.New("bucket unreachable")}
	svc := NewBackupService([]*database.DB{seededResultsDB(t)}, t.TempDir(), uploader, "1.0.0", zerolog.Nop())

	backup, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, backup.Path)
	assert.Empty(t, backup.Location)
}

func TestBackupService_DisabledUploader(t *testing.T) {
	uploader := &fakeUploader{}
	svc := NewBackupService([]*database.DB{seededResultsDB(t)}, t.TempDir(), uploader, "1.0.0", zerolog.Nop())

	_, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, uploader.keys)
}

func TestBackupService_ListAndRotate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	ages := []int{0, 1, 2, 10, 40, 90}
	for _, days := range ages {
		name := backupPrefix + now.AddDate(0, 0, -days).Format(backupTimeLayout) + backupSuffix
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	svc := NewBackupService(nil, dir, nil, "1.0.0", zerolog.Nop())
	svc.now = func() time.Time { return now }

	backups, err := svc.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, len(ages))
	assert.True(t, backups[0].Timestamp.Equal(now), "newest first")

	deleted, err := svc.RotateOldBackups(0)
	require.NoError(t, err)
	assert.Zero(t, deleted, "zero retention keeps everything")

	deleted, err = svc.RotateOldBackups(30)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	backups, err = svc.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 4)
}

func TestBackupService_ListMissingDirectory(t *testing.T) {
	svc := NewBackupService(nil, filepath.Join(t.TempDir(), "none"), nil, "1.0.0", zerolog.Nop())
	backups, err := svc.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}
