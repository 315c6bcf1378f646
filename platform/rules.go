package platform

import "runtime"

// OS names as used in library rules.
const (
	OSWindows = "windows"
	OSMac     = "osx"
	OSLinux   = "linux"
)

// CurrentOS returns the rule name of the running operating system.
func CurrentOS() string {
	switch runtime.GOOS {
	case "windows":
		return OSWindows
	case "darwin":
		return OSMac
	}
	return OSLinux
}

// Allowed evaluates library rules for osName. Without rules a library is
// allowed. Otherwise it starts disallowed and every rule that applies sets
// the state, so the last matching rule wins.
func Allowed(rules []Rule, osName string) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range rules {
		if r.OS != nil && r.OS.Name != "" && r.OS.Name != osName {
			continue
		}
		allowed = r.Action == "allow"
	}
	return allowed
}
