package version

import "runtime/debug"

// Get returns the module version from build info, or "devel" when
// the binary was not built from a tagged module.
func Get() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "devel"
	}
	return info.Main.Version
}
