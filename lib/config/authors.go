package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Identity is the (Name, Email) pair the History Builder attaches to a
// commit's author/committer fields.
type Identity struct {
	Name  string `json:"Name"`
	Email string `json:"Email"`
}

// Authors is the authors-map: {username: {Name, Email}}, loaded from
// --authors-map. A username with no entry defaults to
// "username@localhost", with the username itself standing in
// for Name.
type Authors struct {
	table map[string]Identity
}

// LoadAuthors parses an authors-map JSON file.
func LoadAuthors(path string) (*Authors, error) {
	if path == "" {
		return &Authors{table: map[string]Identity{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: authors-map: %w", err)
	}
	var table map[string]Identity
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("config: authors-map: %s: %w", path, err)
	}
	return &Authors{table: table}, nil
}

// Resolve returns the identity for username, defaulting to
// "username@localhost" when the map has no entry.
func (a *Authors) Resolve(username string) Identity {
	if id, ok := a.table[username]; ok {
		return id
	}
	return Identity{Name: username, Email: username + "@localhost"}
}
