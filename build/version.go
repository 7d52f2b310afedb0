package build

// CurrentCommit is appended to the version by the build system via ldflags.
var CurrentCommit string

// BuildVersion is the local build version.
const BuildVersion = "1.2.0"

func UserVersion() string {
	return BuildVersion + CurrentCommit
}
