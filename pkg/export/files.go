package export

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	extJSON = ".json"
	extGzip = ".json.gz"
)

// writeJSON writes v to dir/<base>.json or dir/<base>.json.gz.
// The file is replaced atomically so readers never see partial content.
func writeJSON(dir, base string, v any, compress bool) error {
	name := base + extJSON
	if compress {
		name = base + extGzip
	}
	return writeFileAtomic(filepath.Join(dir, name), func(w io.Writer) error {
		if !compress {
			return json.NewEncoder(w).Encode(v)
		}
		zw := gzip.NewWriter(w)
		if err := json.NewEncoder(zw).Encode(v); err != nil {
			return err
		}
		return zw.Close()
	})
}

func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSON reads dir/<base>.json or dir/<base>.json.gz into v
func ReadJSON(dir, base string, v any) error {
	f, err := os.Open(filepath.Join(dir, base+extJSON))
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.Open(filepath.Join(dir, base+extGzip))
		if err != nil {
			return err
		}
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		return json.NewDecoder(zr).Decode(v)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// removeStale deletes generated files of a previous export of the session
func removeStale(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isGenerated(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func isGenerated(name string) bool {
	base, ok := strings.CutSuffix(name, extGzip)
	if !ok {
		if base, ok = strings.CutSuffix(name, extJSON); !ok {
			return false
		}
	}
	switch {
	case strings.HasPrefix(base, "chunk_"):
		return true
	case base == "track", base == "features", base == "manifest":
		return true
	default:
		return false
	}
}
