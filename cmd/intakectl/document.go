package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/intake/internal/triage"
)

// Document formats understood by the CLI.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// formatOf picks the format from a file extension. Anything that is not .yaml or .yml is JSON.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// readDocument loads a routing document from path, or from stdin when path is "-".
func readDocument(path string, stdin io.Reader) (*triage.Config, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeDocument(data, formatOf(path))
}

// decodeDocument parses data in the given format. YAML goes through a generic tree and is
// re-encoded as JSON so that condition values keep a single decoding path.
func decodeDocument(data []byte, format string) (*triage.Config, error) {
	if format == formatYAML {
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if tree == nil {
			return nil, fmt.Errorf("parse yaml: empty document")
		}
		js, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		data = js
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg triage.Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	return &cfg, nil
}

// encodeDocument writes cfg in the given format.
func encodeDocument(w io.Writer, cfg *triage.Config, format string) error {
	js, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		_, err = fmt.Fprintf(w, "%s\n", js)
		return err
	case formatYAML:
		var tree any
		if err := json.Unmarshal(js, &tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (must be json or yaml)", format)
}
