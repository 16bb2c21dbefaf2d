package config

import "fmt"

// ParseBool accepts the boolean attribute vocabulary: {1,Yes,yes,True,
// true,0,No,no,False,false}. Any other text is a config-time error.
func ParseBool(s string) (bool, error) {
	switch s {
	case "1", "Yes", "yes", "True", "true":
		return true, nil
	case "0", "No", "no", "False", "false":
		return false, nil
	default:
		return false, fmt.Errorf("config: invalid boolean %q", s)
	}
}

// BoolDefault applies ParseBool to s when non-empty, returning def
// otherwise.
func BoolDefault(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return ParseBool(s)
}
