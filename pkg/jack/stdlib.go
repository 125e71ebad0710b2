package jack

import (
	_ "embed"
	"encoding/json"
)

//go:embed stdlib.json
var stdlibContent string

// StandardLibraryClasses lists the eight OS classes every Jack program may call into without
// a corresponding .jack source file (their VM bodies are supplied separately at link time).
// Resolving a qualified call 'X.member(...)' only needs to know whether X NAMES a class, so the
// ABI here is a bare name list rather than full per-class method signatures.
var StandardLibraryClasses []string

func init() {
	if err := json.Unmarshal([]byte(stdlibContent), &StandardLibraryClasses); err != nil {
		panic("jack: malformed stdlib.json: " + err.Error())
	}
}
