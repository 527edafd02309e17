package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultEntry is one key of the generated config file.
type defaultEntry struct {
	key     string
	value   string
	tag     string
	comment string
}

type defaultSection struct {
	name    string
	comment string
	entries []defaultEntry
}

var defaultLayout = []defaultSection{
	{"local", "On-device cache", []defaultEntry{
		{"path", "", "!!str", "SQLite database file (default: user config dir)"},
		{"busy-timeout", "5s", "!!str", ""},
	}},
	{"remote", "Authoritative document store", []defaultEntry{
		{"driver", string(DriverMySQL), "!!str", "mysql, dolt or memory"},
		{"dsn", "mealsync:secret@tcp(127.0.0.1:3306)/mealsync", "!!str", "go-sql-driver/mysql DSN"},
		{"path", "", "!!str", "embedded Dolt directory (dolt driver)"},
		{"database", "mealsync", "!!str", ""},
	}},
	{"sync", "", []defaultEntry{
		{"concurrency", "4", "!!int", "collection chains run at once"},
		{"push", "true", "!!bool", "send local-only records to the remote store"},
	}},
	{"points", "Daily point accrual", []defaultEntry{
		{"daily", "3.0", "!!float", ""},
		{"cap", "12.0", "!!float", "accrual never raises the balance past this"},
		{"floor", "0.0", "!!float", ""},
		{"ceiling", "100.0", "!!float", ""},
	}},
	{"daemon", "", []defaultEntry{
		{"interval", "15m", "!!str", ""},
		{"trigger", "", "!!str", "touch this file to sync now"},
		{"debounce", "2s", "!!str", ""},
	}},
	{"log", "", []defaultEntry{
		{"level", string(LogInfo), "!!str", "debug, info, warn, error"},
		{"file", "", "!!str", "write logs here instead of stderr"},
	}},
}

// DefaultYAML renders a commented config file with every default.
func DefaultYAML() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "user", HeadComment: "Account the device syncs for"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ""},
	)
	for _, sec := range defaultLayout {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, e := range sec.entries {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: e.key},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: e.tag, Value: e.value, LineComment: e.comment},
			)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: sec.name, HeadComment: sec.comment},
			m,
		)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default config to path. It refuses to overwrite
// an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
