package version

// version is overridden at build time with
// -ldflags "-X github.com/cbodonnell/wordrush/pkg/version.version=v1.2.3"
var version = "dev"

// Get returns the version of the running binary.
func Get() string {
	return version
}
