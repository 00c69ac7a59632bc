// Package backup archives and restores the on-disk storage layout: a
// ZIP of database/table metadata plus every row file, with a TOML
// manifest entry listing what the archive contains. Restore is
// parallelized per table, since distinct table directories share no
// mutable state.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"fdb/internal/ferrors"
	"fdb/internal/ioutil"
	"fdb/internal/store"
)

const manifestName = "manifest.toml"

const restoreConcurrency = 4

// manifest is the TOML sidecar describing an archive's contents,
// embedded as the last entry of the ZIP, after every file it counts.
type manifest struct {
	Database string         `toml:"database"`
	Tables   []tableSummary `toml:"tables"`
}

type tableSummary struct {
	Name     string `toml:"name"`
	RowCount int    `toml:"row_count"`
}

// Dump writes db's entire storage layout — database metadata, every
// table's metadata, and every row file — into w as a ZIP archive. Cache
// directories are excluded. Dump is a static function taking db
// explicitly rather than a method closing over an implicit receiver.
func Dump(db *store.Database, w io.Writer) error {
	zw := zip.NewWriter(w)

	tables, err := db.Tables(nil)
	if err != nil {
		return err
	}

	man := manifest{Database: db.Name()}

	dbMetaPath := ioutil.Join(db.StorageRoot(), db.Name(), ".metadata")
	if err := addFile(zw, dbMetaPath, path.Join(db.Name(), ".metadata")); err != nil {
		_ = zw.Close()
		return err
	}

	for _, name := range tables {
		table, err := db.Table(name)
		if err != nil {
			_ = zw.Close()
			return err
		}

		tableMetaPath := ioutil.Join(db.StorageRoot(), db.Name(), name, ".metadata")
		if err := addFile(zw, tableMetaPath, path.Join(db.Name(), name, ".metadata")); err != nil {
			_ = zw.Close()
			return err
		}

		rows, err := table.Rows(nil)
		if err != nil {
			_ = zw.Close()
			return err
		}
		for _, row := range rows {
			rowPath := ioutil.Join(db.StorageRoot(), db.Name(), name, row.ID()+".ndjson")
			arcPath := path.Join(db.Name(), name, row.ID()+".ndjson")
			if err := addFile(zw, rowPath, arcPath); err != nil {
				_ = zw.Close()
				return err
			}
		}
		man.Tables = append(man.Tables, tableSummary{Name: name, RowCount: len(rows)})
	}

	if err := addManifest(zw, man); err != nil {
		_ = zw.Close()
		return err
	}

	return zw.Close()
}

func addManifest(zw *zip.Writer, man manifest) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(man); err != nil {
		return ferrors.Wrap(ferrors.Internal, "backup.addManifest", "encode manifest", err)
	}
	w, err := zw.Create(manifestName)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.addManifest", "create zip entry", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func addFile(zw *zip.Writer, diskPath, archivePath string) error {
	data, err := ioutil.ReadAll(diskPath)
	if err != nil {
		return err
	}
	w, err := zw.Create(archivePath)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.addFile", "create zip entry "+archivePath, err)
	}
	_, err = w.Write(data)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.addFile", "write zip entry "+archivePath, err)
	}
	return nil
}

// Load extracts an archive produced by Dump into targetRoot. Every
// table's row files are extracted concurrently, bounded by
// restoreConcurrency, since restore touches independent table
// directories with no shared mutable state; database and table metadata
// are extracted first so each table's directory exists before its rows
// land.
func Load(r io.ReaderAt, size int64, targetRoot string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.Load", "open zip reader", err)
	}

	byTable := make(map[string][]*zip.File)
	var metadataFiles []*zip.File

	for _, f := range zr.File {
		if f.Name == manifestName {
			continue
		}
		if strings.HasSuffix(f.Name, "/.metadata") {
			metadataFiles = append(metadataFiles, f)
			continue
		}
		parts := strings.SplitN(f.Name, "/", 3)
		if len(parts) < 3 {
			metadataFiles = append(metadataFiles, f)
			continue
		}
		tableKey := parts[0] + "/" + parts[1]
		byTable[tableKey] = append(byTable[tableKey], f)
	}

	for _, f := range metadataFiles {
		if err := extractFile(f, targetRoot); err != nil {
			return err
		}
	}

	group, _ := errgroup.WithContext(context.Background())
	group.SetLimit(restoreConcurrency)
	for _, files := range byTable {
		files := files
		group.Go(func() error {
			for _, f := range files {
				if err := extractFile(f, targetRoot); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}

func extractFile(f *zip.File, targetRoot string) error {
	rc, err := f.Open()
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.extractFile", "open "+f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "backup.extractFile", "read "+f.Name, err)
	}

	dest := ioutil.Join(targetRoot, f.Name)
	return ioutil.AtomicWrite(dest, data)
}
