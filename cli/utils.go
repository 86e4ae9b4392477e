package cli

import (
	"github.com/javanhut/bdb/internal/fieldmerge"
	"github.com/javanhut/bdb/internal/record"
)

// deleteSentinels walks a decoded JSON object, replacing every null
// leaf with fieldmerge.Delete so `bdbctl update` can express field
// deletion the same way the core's updates-tree convention does.
func deleteSentinels(m map[string]any) record.Fields {
	out := make(record.Fields, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			out[k] = fieldmerge.Delete
		case map[string]any:
			out[k] = deleteSentinels(t)
		default:
			out[k] = t
		}
	}
	return out
}
