package replaycache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/mod/semver"

	"github.com/mpapenbr/racereplay/pkg/model"
)

const (
	// FormatVersion is written into each blob
	FormatVersion = "v1.0.0"
	// MinFormatVersion is the oldest blob version that can be decoded
	MinFormatVersion = "v1.0.0"
	magic            = "RRC"
)

var ErrFormat = errors.New("unsupported cache blob")

// CheckFormatVersion reports whether blobs with the given version can be decoded
func CheckFormatVersion(v string) bool {
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major(FormatVersion) &&
		semver.Compare(v, MinFormatVersion) >= 0
}

// Encode serializes the replay as zstd compressed json behind a header line
// "RRC <version>\n". Equal replays produce equal blobs.
func Encode(r *model.Replay) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	buf := bytes.NewBufferString(fmt.Sprintf("%s %s\n", magic, FormatVersion))
	return enc.EncodeAll(data, buf.Bytes()), nil
}

// Decode reverses Encode
func Decode(blob []byte) (*model.Replay, error) {
	header, payload, found := bytes.Cut(blob, []byte("\n"))
	if !found {
		return nil, fmt.Errorf("%w: missing header", ErrFormat)
	}
	m, version, _ := bytes.Cut(header, []byte(" "))
	if string(m) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if !CheckFormatVersion(string(version)) {
		return nil, fmt.Errorf("%w: version %q", ErrFormat, version)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	data, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	ret := &model.Replay{}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return ret, nil
}
