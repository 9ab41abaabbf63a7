package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw YAML bytes using the
// standard library, the same way tarsy's config loader does it. Missing
// variables expand to the empty string — validation catches required
// fields left empty by a missing variable.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	}))
}
