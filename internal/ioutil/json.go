package ioutil

import (
	"encoding/json"

	"fdb/internal/ferrors"
)

// WriteJSON marshals v and atomically writes it to path.
func WriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, "ioutil.WriteJSON", path, err)
	}
	return AtomicWrite(path, data)
}

// ReadJSON reads path and unmarshals it into v.
func ReadJSON(path string, v any) error {
	data, err := ReadAll(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ferrors.Wrap(ferrors.Internal, "ioutil.ReadJSON", path, err)
	}
	return nil
}
