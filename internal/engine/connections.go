// Package engine executes scheduled query SQL against DuckDB connections.
package engine

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Connection describes a named DuckDB database.
type Connection struct {
	// DSN is the DuckDB database path; empty opens an in-memory database.
	DSN string `yaml:"dsn"`
	// Init statements run once when the connection is first opened, e.g.
	// INSTALL/LOAD of extensions or ATTACH.
	Init []string `yaml:"init,omitempty"`
}

// connectionsFile is the on-disk layout of CONNECTIONS_FILE.
type connectionsFile struct {
	Connections map[string]Connection `yaml:"connections"`
}

// LoadConnections reads a YAML file mapping connection IDs to DuckDB
// databases:
//
//	connections:
//	  warehouse:
//	    dsn: /data/warehouse.duckdb
//	    init: ["LOAD httpfs"]
func LoadConnections(path string) (map[string]Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connections file: %w", err)
	}
	return ParseConnections(data)
}

// ParseConnections decodes the YAML connections document.
func ParseConnections(data []byte) (map[string]Connection, error) {
	var f connectionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse connections file: %w", err)
	}
	for id := range f.Connections {
		if id == "" {
			return nil, fmt.Errorf("parse connections file: empty connection id")
		}
	}
	if f.Connections == nil {
		f.Connections = map[string]Connection{}
	}
	return f.Connections, nil
}

// ConnectionIDs returns the sorted connection IDs.
func ConnectionIDs(conns map[string]Connection) []string {
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
