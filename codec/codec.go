// Package codec reads and writes configuration files, dispatching on the
// file extension. Supported formats are .json, .yaml, .yml, and .toml.
//
// JSON and YAML documents are parsed through the YAML node API so that the
// document order of mapping keys is preserved; series specifications depend
// on that order for their cartesian-product expansion.
package codec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/plonerma/cordage/internal/errors"
	"github.com/plonerma/cordage/internal/maps"
)

// Document is a parsed configuration file: the nested mapping plus the
// dotted paths of its leaves in document order. For formats that cannot
// report document order (.toml), KeyOrder is lexicographic.
type Document struct {
	Data     map[string]any
	KeyOrder []string
}

// Read reads a configuration file into a nested mapping.
func Read(path string) (map[string]any, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// ReadDocument reads a configuration file, retaining leaf key order.
func ReadDocument(path string) (*Document, error) {
	ext, err := extension(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EUsage,
			fmt.Sprintf("could not read config file %s", path), err,
			map[string]string{"path": path})
	}

	switch ext {
	case "json", "yaml", "yml":
		// YAML is a superset of JSON; parsing both through the node
		// API keeps integer types and key order consistent.
		return decodeYAML(path, raw)
	case "toml":
		return decodeTOML(path, raw)
	default:
		panic("unreachable")
	}
}

// Write writes a nested mapping to a configuration file.
func Write(path string, data map[string]any) error {
	ext, err := extension(path)
	if err != nil {
		return err
	}

	var raw []byte
	switch ext {
	case "json":
		raw, err = json.MarshalIndent(data, "", "  ")
		raw = append(raw, '\n')
	case "yaml", "yml":
		raw, err = yaml.Marshal(data)
	case "toml":
		raw, err = toml.Marshal(data)
	}
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed,
			fmt.Sprintf("could not encode config file %s", path), err,
			map[string]string{"path": path})
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed,
			fmt.Sprintf("could not write config file %s", path), err,
			map[string]string{"path": path})
	}
	return nil
}

func extension(path string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "json", "yaml", "yml", "toml":
		return ext, nil
	}
	return "", errors.NewWithDetails(errors.EUnsupportedFormat,
		fmt.Sprintf("unrecognized file format %q (supported are .json, .yaml, .yml, and .toml)", "."+ext),
		map[string]string{"path": path})
}

func decodeYAML(path string, raw []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, errors.WrapWithDetails(errors.EMetadataCorrupt,
			fmt.Sprintf("could not parse %s", path), err,
			map[string]string{"path": path})
	}

	data := make(map[string]any)
	if node.Kind != 0 {
		if err := node.Decode(&data); err != nil {
			return nil, errors.WrapWithDetails(errors.EMetadataCorrupt,
				fmt.Sprintf("%s does not hold a mapping", path), err,
				map[string]string{"path": path})
		}
	}

	doc := &Document{Data: data}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	collectLeafOrder(root, "", &doc.KeyOrder)
	return doc, nil
}

// collectLeafOrder walks mapping nodes, appending dotted leaf paths in
// document order.
func collectLeafOrder(node *yaml.Node, prefix string, order *[]string) {
	if node.Kind != yaml.MappingNode {
		if prefix != "" {
			*order = append(*order, prefix)
		}
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		collectLeafOrder(node.Content[i+1], key, order)
	}
}

func decodeTOML(path string, raw []byte) (*Document, error) {
	data := make(map[string]any)
	if err := toml.Unmarshal(raw, &data); err != nil {
		return nil, errors.WrapWithDetails(errors.EMetadataCorrupt,
			fmt.Sprintf("could not parse %s", path), err,
			map[string]string{"path": path})
	}
	return &Document{
		Data:     data,
		KeyOrder: maps.SortedPaths(maps.Flatten(data)),
	}, nil
}
