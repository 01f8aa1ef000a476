package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Format is the encoding of a catalog source.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
}

// Source is the declarative catalog document.
type Source struct {
	Version  int                          `yaml:"version" toml:"version" json:"version"`
	Messages map[string]map[string]string `yaml:"messages" toml:"messages" json:"messages"`
	Errors   []Entry                      `yaml:"errors" toml:"errors" json:"errors"`
}

// Entry is one undecoded catalog definition.
type Entry struct {
	ID             string `yaml:"id" toml:"id" json:"id"`
	Group          string `yaml:"group" toml:"group" json:"group"`
	Severity       string `yaml:"severity" toml:"severity" json:"severity"`
	Retry          string `yaml:"retry" toml:"retry" json:"retry"`
	HTTPStatus     int    `yaml:"http_status" toml:"http_status" json:"http_status"`
	UserVisible    bool   `yaml:"user_visible" toml:"user_visible" json:"user_visible"`
	UserMessageKey string `yaml:"user_message_key" toml:"user_message_key" json:"user_message_key"`
	Runbook        string `yaml:"runbook" toml:"runbook" json:"runbook"`
	Description    string `yaml:"description" toml:"description" json:"description"`
}

func decode(data []byte, format Format) (Source, error) {
	var src Source
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &src)
	case FormatTOML:
		err = toml.Unmarshal(data, &src)
	case FormatJSON:
		err = json.Unmarshal(data, &src)
	default:
		err = fmt.Errorf("unsupported catalog format %q", format)
	}
	return src, err
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &LoadError{Source: path, Problems: []string{err.Error()}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Problems: []string{err.Error()}}
	}

	cat, err := Load(data, format)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Source = path
		}
		return nil, err
	}
	return cat, nil
}

// Load decodes and validates a catalog document.
func Load(data []byte, format Format) (*Catalog, error) {
	src, err := decode(data, format)
	if err != nil {
		return nil, &LoadError{Problems: []string{fmt.Sprintf("decode %s: %v", format, err)}}
	}
	return FromSource(src)
}
