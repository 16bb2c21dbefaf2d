package config

import (
	"fmt"
	"regexp"
	"strings"
)

// VarTable holds $name / ${name} / $(name) variable definitions,
// resolved once at config-load time. A value
// containing ";" expands as a "{a,b,...}" alternation when it is
// interpolated into a glob, so a list-valued variable inside a <Path>
// spec matches any of its entries.
type VarTable struct {
	raw      map[string]string
	resolved map[string]string
}

// NewVarTable returns an empty table ready to accept <Vars> entries.
func NewVarTable() *VarTable {
	return &VarTable{raw: map[string]string{}, resolved: map[string]string{}}
}

// Set records a variable's unexpanded definition.
func (t *VarTable) Set(name, value string) {
	t.raw[name] = value
}

var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$\(([A-Za-z_][A-Za-z0-9_]*)\)|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ErrCircularVar is returned when a variable's expansion recurses into
// itself.
var ErrCircularVar = fmt.Errorf("config: circular variable reference")

// Resolve recursively expands every $name/${name}/$(name) reference in
// every defined variable, caching results so later Expand calls are O(1).
// Must be called once after all <Vars> are loaded.
func (t *VarTable) Resolve() error {
	for name := range t.raw {
		if _, err := t.resolve(name, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func (t *VarTable) resolve(name string, inProgress map[string]bool) (string, error) {
	if v, done := t.resolved[name]; done {
		return v, nil
	}
	if inProgress[name] {
		return "", fmt.Errorf("%w: %s", ErrCircularVar, name)
	}
	raw, ok := t.raw[name]
	if !ok {
		return "", fmt.Errorf("config: undefined variable %q", name)
	}
	inProgress[name] = true
	out, err := t.expand(raw, inProgress)
	if err != nil {
		return "", err
	}
	delete(inProgress, name)
	t.resolved[name] = out
	return out, nil
}

func (t *VarTable) expand(s string, inProgress map[string]bool) (string, error) {
	var expandErr error
	out := varRef.ReplaceAllStringFunc(s, func(m string) string {
		if expandErr != nil {
			return m
		}
		sub := varRef.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if name == "" {
			name = sub[3]
		}
		val, err := t.resolve(name, inProgress)
		if err != nil {
			expandErr = err
			return m
		}
		return val
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// Expand substitutes every variable reference in s using already-resolved
// values. ToGlobAlternation controls whether a ";"-valued variable expands
// as a literal ";" (for a semicolon list context) or as a "{a,b}"
// alternation (for direct interpolation into a single glob term). The
// wrapping applies per substituted value, not to the whole result, so
// "**/$UserBranches/*" becomes "**/{users/branches,branches/users}/*".
func (t *VarTable) Expand(s string, toGlobAlternation bool) (string, error) {
	var expandErr error
	out := varRef.ReplaceAllStringFunc(s, func(m string) string {
		if expandErr != nil {
			return m
		}
		sub := varRef.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if name == "" {
			name = sub[3]
		}
		val, err := t.resolve(name, map[string]bool{})
		if err != nil {
			expandErr = err
			return m
		}
		if toGlobAlternation {
			val = alternateSemicolons(val)
		}
		return val
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// alternateSemicolons rewrites any "a;b;c" run that survived variable
// expansion into "{a,b,c}" so it becomes a single glob alternation term
// rather than being mistaken for a PatternList separator.
func alternateSemicolons(s string) string {
	if !strings.Contains(s, ";") {
		return s
	}
	parts := strings.Split(s, ";")
	return "{" + strings.Join(parts, ",") + "}"
}
