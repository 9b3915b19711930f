package disposable

import (
	_ "embed"
	"strings"
)

// The bundled snapshot of known throwaway-mailbox domains. Maintaining the
// list is out of scope here, refresh it by replacing the file.
//
//go:embed list.txt
var rawList string

var domains map[string]struct{}

func init() {
	domains = make(map[string]struct{})
	for _, line := range strings.Split(rawList, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			domains[strings.ToLower(line)] = struct{}{}
		}
	}
}
