// Package jsonhelper decodes JSON configuration files.
package jsonhelper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// OpenAndDecodeDisallowUnknownFields opens the file at path and decodes it into v,
// rejecting fields that v does not declare and trailing data after the value.
func OpenAndDecodeDisallowUnknownFields(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return DecodeDisallowUnknownFields(f, v)
}

// DecodeDisallowUnknownFields decodes a single JSON value from r into v,
// rejecting fields that v does not declare and trailing data after the value.
func DecodeDisallowUnknownFields(r io.Reader, v any) error {
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return err
	}
	if d.More() {
		return fmt.Errorf("unexpected data after top-level value at offset %d", d.InputOffset())
	}
	return nil
}
