package resolve

import "strings"

const builtinScheme = "node:"

// nodeBuiltinModules are the top-level Node.js core modules. They never map
// to a file, even when a package of the same name is installed.
var nodeBuiltinModules = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// isNodeBuiltin accepts bare names, subpaths such as fs/promises, and any
// node: specifier.
func isNodeBuiltin(specifier string) bool {
	if strings.HasPrefix(specifier, builtinScheme) {
		return true
	}
	name, _, _ := strings.Cut(specifier, "/")
	return nodeBuiltinModules[name]
}
