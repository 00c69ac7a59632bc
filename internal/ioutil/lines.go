package ioutil

import (
	"bufio"
	"os"

	"fdb/internal/ferrors"
)

// ReadLine reads the Nth (0-indexed) newline-delimited record of path
// without loading the whole file, used for cheap single-column lookups
// against the row codec's header-then-values layout.
func ReadLine(path string, index int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.Wrap(ferrors.NotFound, "ioutil.ReadLine", path, err)
		}
		return nil, ferrors.Wrap(ferrors.IOFailure, "ioutil.ReadLine", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for i := 0; scanner.Scan(); i++ {
		if i == index {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.IOFailure, "ioutil.ReadLine", path, err)
	}
	return nil, ferrors.New(ferrors.NotFound, "ioutil.ReadLine", "line index out of range")
}

// ReadLines reads every newline-delimited record of path.
func ReadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.Wrap(ferrors.NotFound, "ioutil.ReadLines", path, err)
		}
		return nil, ferrors.Wrap(ferrors.IOFailure, "ioutil.ReadLines", path, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, ferrors.Wrap(ferrors.IOFailure, "ioutil.ReadLines", path, err)
	}
	return lines, nil
}
