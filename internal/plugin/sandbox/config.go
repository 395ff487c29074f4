package sandbox

import (
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// Default limits applied by Default().
const (
	DefaultMemoryLimit      = 10 * 1024 * 1024 // 10 MiB
	DefaultInstructionLimit = 1_000_000
	DefaultTimeout          = 5 * time.Second
)

// Config describes the sandbox a plugin executes within.
//
// The zero value denies everything; use Default, Permissive, or Restrictive
// for a usable starting point and the With*/Allow* methods to adjust.
type Config struct {
	// MemoryLimit is the interpreter memory budget in bytes. Enforcement
	// depends on the backend; gopher-lua treats it as advisory.
	MemoryLimit int64

	// InstructionLimit caps VM instructions per call.
	InstructionLimit int64

	// Timeout bounds the wall-clock duration of a single plugin call.
	Timeout time.Duration

	// AllowedPaths are glob patterns for permitted filesystem paths.
	// Empty denies all filesystem access.
	AllowedPaths []string

	// AllowNetwork enables network access. Without it AllowedHosts is
	// ignored and every host is denied.
	AllowNetwork bool

	// AllowedHosts are patterns for permitted network hosts. With
	// AllowNetwork set and an empty list, all hosts are permitted; a
	// non-empty list narrows access to matching hosts.
	AllowedHosts []string

	// AllowedModules are the interpreter stdlib modules a plugin may load.
	AllowedModules map[string]bool
}

// Default returns the conservative policy used for unknown plugins.
func Default() Config {
	return Config{
		MemoryLimit:      DefaultMemoryLimit,
		InstructionLimit: DefaultInstructionLimit,
		Timeout:          DefaultTimeout,
		AllowedModules:   moduleSet("string", "table", "math", "utf8"),
	}
}

// Permissive returns a policy for trusted plugins.
func Permissive() Config {
	return Config{
		MemoryLimit:      100 * 1024 * 1024,
		InstructionLimit: 10_000_000,
		Timeout:          30 * time.Second,
		AllowedPaths:     []string{"**"},
		AllowNetwork:     true,
		AllowedHosts:     []string{"*"},
		AllowedModules: moduleSet(
			"string", "table", "math", "utf8",
			"os", "io", "package", "coroutine", "debug",
		),
	}
}

// Restrictive returns the maximum-isolation policy.
func Restrictive() Config {
	return Config{
		MemoryLimit:      1024 * 1024,
		InstructionLimit: 100_000,
		Timeout:          time.Second,
		AllowedModules:   moduleSet("string", "math"),
	}
}

func moduleSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// WithMemoryLimit sets the memory budget in bytes.
func (c Config) WithMemoryLimit(bytes int64) Config {
	c.MemoryLimit = bytes
	return c
}

// WithInstructionLimit sets the per-call instruction cap.
func (c Config) WithInstructionLimit(limit int64) Config {
	c.InstructionLimit = limit
	return c
}

// WithTimeout sets the per-call wall-clock bound.
func (c Config) WithTimeout(d time.Duration) Config {
	c.Timeout = d
	return c
}

// AllowPath adds a filesystem glob pattern to the allow-list.
func (c Config) AllowPath(pattern string) Config {
	c.AllowedPaths = append(append([]string{}, c.AllowedPaths...), pattern)
	return c
}

// WithNetwork enables network access.
func (c Config) WithNetwork() Config {
	c.AllowNetwork = true
	return c
}

// AllowHost adds a host pattern to the allow-list.
func (c Config) AllowHost(pattern string) Config {
	c.AllowedHosts = append(append([]string{}, c.AllowedHosts...), pattern)
	return c
}

// AllowModule permits an interpreter module.
func (c Config) AllowModule(name string) Config {
	set := make(map[string]bool, len(c.AllowedModules)+1)
	for k, v := range c.AllowedModules {
		set[k] = v
	}
	set[name] = true
	c.AllowedModules = set
	return c
}

// IsPathAllowed reports whether the path matches an allowed pattern.
// An empty allow-list denies every path.
func (c Config) IsPathAllowed(path string) bool {
	if len(c.AllowedPaths) == 0 {
		return false
	}
	for _, pattern := range c.AllowedPaths {
		if pattern == "*" || pattern == "**" {
			return true
		}
		if globMatch(pattern, path) {
			return true
		}
	}
	return false
}

// IsHostAllowed reports whether network access to host is permitted.
// AllowNetwork must be set; an empty host list then permits all hosts,
// otherwise the host must match a listed pattern.
func (c Config) IsHostAllowed(host string) bool {
	if !c.AllowNetwork {
		return false
	}
	if len(c.AllowedHosts) == 0 {
		return true
	}
	for _, pattern := range c.AllowedHosts {
		if pattern == "*" || globMatch(pattern, host) {
			return true
		}
	}
	return false
}

// IsModuleAllowed reports whether the interpreter module may be loaded.
func (c Config) IsModuleAllowed(name string) bool {
	return c.AllowedModules[name] || c.AllowedModules["*"]
}

// globCache holds compiled patterns; patterns are reused across every
// access check so compiling once matters on hot paths.
var globCache sync.Map // string -> glob.Glob

// globMatch matches text against a glob pattern. Patterns are compiled
// without separator characters, so "*" crosses path boundaries: "*" matches
// anything, "*.txt" matches "file.txt", "/home/*" matches "/home/user",
// "*config*" matches "/path/config/file". A pattern without metacharacters
// requires exact equality. Patterns that fail to compile match nothing.
func globMatch(pattern, text string) bool {
	if g, ok := globCache.Load(pattern); ok {
		return g.(glob.Glob).Match(text)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	globCache.Store(pattern, g)
	return g.Match(text)
}
