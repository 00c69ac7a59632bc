// Package rowcodec serializes and deserializes a row as a newline-
// delimited JSON file: a header line of column names (sorted), followed
// by one line per value in the same order. Encrypted columns hold the
// base64 AEAD blob produced by internal/crypto rather than the raw
// value.
package rowcodec

import (
	"bytes"
	"encoding/json"
	"sort"

	"fdb/internal/crypto"
	"fdb/internal/ferrors"
	"fdb/internal/schema"
)

// Encode serializes columns against s into the row-file wire format.
// Values for columns marked encrypted in s are encrypted under dek
// before being written; dek is ignored if s has no encrypted columns.
// Columns absent from s are tolerated per schema's unknown-column rule
// and still written, just without type validation or encryption.
func Encode(s *schema.Schema, columns map[string]any, dek crypto.DEK) ([]byte, error) {
	present := make([]string, 0, len(columns))
	for name := range columns {
		if name == schema.IDColumn {
			continue
		}
		present = append(present, name)
	}
	sort.Strings(present)

	header, err := json.Marshal(present)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Encode", "marshal header", err)
	}

	var buf bytes.Buffer
	buf.Write(header)
	buf.WriteByte('\n')

	for _, name := range present {
		value := columns[name]
		col, _ := s.Get(name)

		var line []byte
		if col.Encrypted {
			blob, err := crypto.Encrypt(value, dek[:])
			if err != nil {
				return nil, err
			}
			line, err = json.Marshal(blob)
			if err != nil {
				return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Encode", "marshal encrypted value", err)
			}
		} else {
			line, err = json.Marshal(value)
			if err != nil {
				return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Encode", "marshal value", err)
			}
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Decode parses a row file's bytes back into a column map, decrypting
// any column s marks encrypted using dek.
func Decode(s *schema.Schema, data []byte, dek crypto.DEK) (map[string]any, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, ferrors.New(ferrors.Internal, "rowcodec.Decode", "empty row file")
	}

	var names []string
	if err := json.Unmarshal(lines[0], &names); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Decode", "unmarshal header", err)
	}
	if len(lines)-1 != len(names) {
		return nil, ferrors.New(ferrors.Internal, "rowcodec.Decode", "header/value line count mismatch")
	}

	out := make(map[string]any, len(names))
	for i, name := range names {
		col, _ := s.Get(name)

		var raw any
		if err := json.Unmarshal(lines[i+1], &raw); err != nil {
			return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Decode", "unmarshal value for "+name, err)
		}

		if col.Encrypted {
			blob, ok := raw.(string)
			if !ok {
				return nil, ferrors.New(ferrors.CryptoFailed, "rowcodec.Decode", "encrypted column "+name+" has non-string payload")
			}
			value, err := crypto.Decrypt(blob, dek[:])
			if err != nil {
				return nil, err
			}
			out[name] = value
			continue
		}
		out[name] = raw
	}

	return out, nil
}

// DecodeColumn decodes a single already-read value line for column
// name, decrypting it if s marks the column encrypted. Used by
// Row.Get's cheap single-column lookup path (ioutil.ReadLine).
func DecodeColumn(s *schema.Schema, name string, line []byte, dek crypto.DEK) (any, error) {
	col, _ := s.Get(name)

	var raw any
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.DecodeColumn", "unmarshal value for "+name, err)
	}
	if !col.Encrypted {
		return raw, nil
	}
	blob, ok := raw.(string)
	if !ok {
		return nil, ferrors.New(ferrors.CryptoFailed, "rowcodec.DecodeColumn", "encrypted column "+name+" has non-string payload")
	}
	return crypto.Decrypt(blob, dek[:])
}

// Header reads just the header line (column name list) of an already
// loaded row file, without decoding any values.
func Header(data []byte) ([]string, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, ferrors.New(ferrors.Internal, "rowcodec.Header", "empty row file")
	}
	var names []string
	if err := json.Unmarshal(lines[0], &names); err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, "rowcodec.Header", "unmarshal header", err)
	}
	return names, nil
}

func splitLines(data []byte) [][]byte {
	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return nil
	}
	return bytes.Split(data, []byte("\n"))
}
