package worker

import (
	"os"
	"sort"
	"strings"
)

// DiscoverModules scans dir for Go source files named with the given
// suffix (e.g. "send_email_function.go" for suffix "_function") and
// returns the candidate function names, in lexical order, with the
// suffix and extension stripped. It does not inspect file contents —
// a discovered name still has to be registered with a Client before a
// Pool can Spawn it.
func DiscoverModules(dir string, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		base := strings.TrimSuffix(name, ".go")
		if !strings.HasSuffix(base, suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(base, suffix))
	}

	sort.Strings(names)
	return names, nil
}
