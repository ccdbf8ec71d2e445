// Package source loads materialized session files.
package source

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/racereplay/pkg/model"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var validate = validator.New()

// LoadFile reads a session file. The format is derived from the file name
// (.json, .yaml, .yml, each optionally followed by .gz).
func LoadFile(path string) (*model.SessionData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.ToLower(path)
	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}
	format := FormatJSON
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	ret, err := Load(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ret, nil
}

// Load decodes and validates a session
func Load(r io.Reader, format Format) (*model.SessionData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == FormatYAML {
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	ret := &model.SessionData{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(ret); err != nil {
		return nil, err
	}
	if err := validate.Struct(&ret.Info); err != nil {
		return nil, err
	}
	for i := range ret.Vehicles {
		if ret.Vehicles[i].ID == "" {
			return nil, fmt.Errorf("vehicle at index %d has no id", i)
		}
	}
	return ret, nil
}

// yamlToJSON converts the document so that the json decoding rules of the
// model (optional values) apply to both formats
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// SaveFile writes the session as json, gzip compressed if the name ends with .gz
func SaveFile(path string, s *model.SessionData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return json.NewEncoder(f).Encode(s)
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(s); err != nil {
		return err
	}
	return gz.Close()
}
