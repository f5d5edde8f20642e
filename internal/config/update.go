package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AddHost adds a host entry to an existing config file, preserving the rest
// of the file's structure and comments. An existing host with the same name
// is left alone and reported as an error.
func AddHost(configPath, name string, host Host) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	hostsNode := findMapValue(docNode, "hosts")
	if hostsNode == nil || hostsNode.Kind != yaml.MappingNode {
		hostsNode = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		docNode.Content = append(docNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "hosts"},
			hostsNode)
	}

	if findMapValue(hostsNode, name) != nil {
		return fmt.Errorf("host '%s' already exists in %s", name, configPath)
	}

	var hostNode yaml.Node
	if err := hostNode.Encode(host); err != nil {
		return fmt.Errorf("failed to encode host: %w", err)
	}
	pruneEmpty(&hostNode)

	hostsNode.Content = append(hostsNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
		&hostNode)

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

// pruneEmpty drops empty scalars and sequences from a mapping so written
// hosts only list what was set.
func pruneEmpty(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		return
	}
	kept := node.Content[:0]
	for i := 0; i < len(node.Content)-1; i += 2 {
		v := node.Content[i+1]
		if (v.Kind == yaml.ScalarNode && v.Value == "") || (v.Kind == yaml.SequenceNode && len(v.Content) == 0) {
			continue
		}
		kept = append(kept, node.Content[i], v)
	}
	node.Content = kept
}
