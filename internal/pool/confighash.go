package pool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ConfigHash computes a stable hash over a normalized configuration: keys are
// sorted recursively, then the result is JSON-encoded with defined ordering
// and hashed. Reordering keys in the input produces the same hash (§8
// "Stable config hash").
func ConfigHash(config map[string]any) string {
	normalized := normalize(config)

	encoded, err := json.Marshal(normalized)
	if err != nil {
		// Configuration values are always JSON-derived; a marshal failure
		// here means an invariant was violated upstream.
		panic("pool: config hash marshal failed: " + err.Error())
	}

	sum := sha256.Sum256(encoded)

	return hex.EncodeToString(sum[:])
}

// normalize produces a deterministically ordered representation: maps become
// sorted key/value slices, slices are walked recursively, scalars pass
// through unchanged.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		ordered := make([]orderedEntry, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedEntry{Key: k, Value: normalize(v[k])})
		}

		return ordered
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = normalize(item)
		}

		return result
	default:
		return v
	}
}

type orderedEntry struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}
