// Package snapshot persists extracted observations and site metadata as a
// single zip bundle of Parquet tables, so later phases can rerun without
// repeating the download.
package snapshot

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// ErrNoSnapshot is returned by Load when no bundle has been written yet.
var ErrNoSnapshot = errors.New("no snapshot found")

// Bundle entry names.
const (
	entryManifest     = "manifest.json"
	entryObservations = "observations.parquet"
	entrySites        = "sites.parquet"
)

// Store reads and writes the snapshot bundle at a fixed path.
// It implements pipeline.SnapshotStore.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store for the bundle at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the bundle location.
func (s *Store) Path() string { return s.path }

type manifest struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Observations int       `json:"observations"`
	Sites        int       `json:"sites"`
}

// Save writes the snapshot to a temporary file beside the bundle and renames
// it into place, so readers never observe a partial bundle.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	obsRows := make([]observationRow, len(snap.Observations))
	for i := range snap.Observations {
		obsRows[i] = toObservationRow(snap.Observations[i])
	}
	obsData, err := encodeParquet(obsRows)
	if err != nil {
		return fmt.Errorf("encode observations: %w", err)
	}

	siteRows := make([]siteRow, len(snap.Sites))
	for i := range snap.Sites {
		siteRows[i] = toSiteRow(snap.Sites[i])
	}
	siteData, err := encodeParquet(siteRows)
	if err != nil {
		return fmt.Errorf("encode sites: %w", err)
	}

	man, err := json.MarshalIndent(manifest{
		RunID:        snap.RunID,
		CreatedAt:    snap.CreatedAt,
		StartDate:    snap.StartDate,
		EndDate:      snap.EndDate,
		Observations: len(snap.Observations),
		Sites:        len(snap.Sites),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.zip")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	zw := zip.NewWriter(tmp)
	for _, e := range []struct {
		name string
		data []byte
	}{
		{entryManifest, man},
		{entryObservations, obsData},
		{entrySites, siteData},
	} {
		// Parquet pages are already compressed.
		method := zip.Store
		if e.name == entryManifest {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method, Modified: snap.CreatedAt})
		if err != nil {
			tmp.Close()
			return fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			tmp.Close()
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}

	s.logger.Info("snapshot saved",
		"path", s.path,
		"snapshot_id", snap.RunID,
		"observations", len(snap.Observations),
		"sites", len(snap.Sites),
	)
	return nil
}

// Load reads the bundle back. A missing bundle returns ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoSnapshot, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer zr.Close()

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries[f.Name] = data
	}
	for _, name := range []string{entryManifest, entryObservations, entrySites} {
		if _, ok := entries[name]; !ok {
			return nil, fmt.Errorf("snapshot %s: missing %s", s.path, name)
		}
	}

	var man manifest
	if err := json.Unmarshal(entries[entryManifest], &man); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	obsRows, err := decodeParquet[observationRow](entries[entryObservations])
	if err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}
	siteRows, err := decodeParquet[siteRow](entries[entrySites])
	if err != nil {
		return nil, fmt.Errorf("decode sites: %w", err)
	}

	snap := &domain.Snapshot{
		RunID:        man.RunID,
		CreatedAt:    man.CreatedAt,
		StartDate:    man.StartDate,
		EndDate:      man.EndDate,
		Observations: make([]domain.RawObservation, len(obsRows)),
		Sites:        make([]domain.Site, len(siteRows)),
	}
	for i := range obsRows {
		snap.Observations[i] = obsRows[i].observation()
	}
	for i := range siteRows {
		snap.Sites[i] = siteRows[i].site()
	}

	if len(snap.Observations) != man.Observations || len(snap.Sites) != man.Sites {
		return nil, fmt.Errorf("snapshot %s: manifest lists %d observations and %d sites, found %d and %d",
			s.path, man.Observations, man.Sites, len(snap.Observations), len(snap.Sites))
	}

	s.logger.Info("snapshot loaded", "path", s.path, "snapshot_id", snap.RunID, "observations", len(snap.Observations))
	return snap, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := writeRows(pw, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rowWriter is the part of writer.ParquetWriter that encodeParquet drives.
type rowWriter interface {
	Write(src interface{}) error
	WriteStop() error
}

// writeRows writes every row and finishes the file. Write and WriteStop can
// panic on schema mismatches inside the library; the panic becomes an error.
func writeRows[T any](pw rowWriter, rows []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	return nil
}

func decodeParquet[T any](data []byte) ([]T, error) {
	pf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(pf, new(T), 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]T, n)
	if n == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
