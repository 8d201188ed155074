package amem

import "github.com/dan-solli/agenticmemory/pkg/amemerr"

// errorKind extracts the stable error-kind string for trace/metrics
// labeling, falling back to "unknown" for anything not already a typed
// *amemerr.Error.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if k := amemerr.KindOf(err); k != "" {
		return string(k)
	}
	return "unknown"
}
