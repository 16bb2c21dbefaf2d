package dump

import (
	"bytes"
	"fmt"
)

// Properties is the key->value table carried by a revision or a node.
// Values are kept as raw bytes since SVN properties are not guaranteed to be
// valid UTF-8 (e.g. svn:mime-type garbage, embedded binary data in rare
// custom properties).
type Properties map[string][]byte

// parseProperties reads a PROPS-END-terminated K/V/D block of exactly
// length bytes from r and returns the resulting table plus any deletion
// keys encountered (a "D" entry in a node's property block removes an
// inherited property rather than setting one).
func parseProperties(r *reader, length int) (props Properties, deletions []string, err error) {
	if length == 0 {
		return Properties{}, nil, nil
	}
	raw, err := r.read(length)
	if err != nil {
		return nil, nil, fmt.Errorf("properties: %w", err)
	}
	sub := newReader(raw)
	props = Properties{}
	for {
		if sub.hasPrefix(propsEnd) {
			sub.discard(len(propsEnd))
			sub.newlineConsumed()
			break
		}
		if sub.hasPrefix("D ") {
			key, err := sub.readSized('D')
			if err != nil {
				return nil, nil, fmt.Errorf("properties: deletion: %w", err)
			}
			deletions = append(deletions, string(key))
			continue
		}
		key, err := sub.readSized('K')
		if err != nil {
			return nil, nil, fmt.Errorf("properties: key: %w", err)
		}
		value, err := sub.readSized('V')
		if err != nil {
			return nil, nil, fmt.Errorf("properties: %s: value: %w", key, err)
		}
		keyStr := string(key)
		if _, dup := props[keyStr]; dup {
			return nil, nil, fmt.Errorf("properties: duplicate property %q", keyStr)
		}
		props[keyStr] = value
	}
	return props, deletions, nil
}

// Has reports whether key is present (and not a deletion marker).
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns a property's value decoded as a string.
func (p Properties) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return string(v), true
}

// IsExecutable reports whether svn:executable is present, which the data
// model maps to the exec-flag on a File node.
func (p Properties) IsExecutable() bool {
	return p.Has("svn:executable")
}

// IsSpecial reports whether svn:special is present; combined with a
// "link " content prefix this denotes a symlink.
func (p Properties) IsSpecial() bool {
	return p.Has("svn:special")
}

// IsSymlinkContent reports whether raw file content begins with the "link "
// marker SVN uses to represent a symlink target as file data.
func IsSymlinkContent(content []byte) bool {
	return bytes.HasPrefix(content, []byte("link "))
}

// MergeInfo returns the raw svn:mergeinfo property text, if present.
func (p Properties) MergeInfo() (string, bool) {
	return p.String("svn:mergeinfo")
}

// GitIgnore returns the directory's ignore property text, if present.
// svn:global-ignores-era repositories sometimes carry a svn:gitignore
// property with gitignore syntax already; it wins over plain svn:ignore.
// The History Builder converts either into a literal .gitignore file.
func (p Properties) GitIgnore() (string, bool) {
	if v, ok := p.String("svn:gitignore"); ok {
		return v, ok
	}
	return p.String("svn:ignore")
}

// Clone returns a shallow copy suitable for a child snapshot to mutate
// independently of its parent.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Apply merges additions and removes deletions, returning a new table; the
// receiver is left unmodified (Path Tree snapshots are immutable once
// closed).
func (p Properties) Apply(additions Properties, deletions []string) Properties {
	out := p.Clone()
	for _, key := range deletions {
		delete(out, key)
	}
	for k, v := range additions {
		out[k] = v
	}
	return out
}
