package store

import (
	"os"

	"fdb/internal/ferrors"
)

// readDirNames lists the base names of dir's immediate entries. A
// missing directory is reported as an empty list, not an error: a
// database or table with nothing in it yet is a normal state.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.Wrap(ferrors.IOFailure, "store.readDirNames", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}

func renameDir(oldDir, newDir string) error {
	if err := os.Rename(oldDir, newDir); err != nil {
		return ferrors.Wrap(ferrors.IOFailure, "store.renameDir", oldDir, err)
	}
	return nil
}
