package interpreter

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// reImage matches the pathname of a python executable or libpython
// shared object in the target's maps, capturing the image kind and the
// major.minor version.
var reImage = regexp.MustCompile(`/((?:lib)?python)(\d+)\.(\d+)(?:[mdu]{0,2}(?:\.so)?)?(?:\.1\.0)?$`)

var (
	// Interpreters that publish _PyThreadState_Current as a global.
	// 3.7 moved the thread state into _PyRuntime and 3.11 replaced
	// frame objects; both are out of reach of this decoder.
	supportedVersions = mustConstraint(">=2.6.0, <2.8.0 || >=3.3.0, <3.7.0")

	// Line-number tables pack the line delta as signed two's-complement
	// from 3.6 onward; earlier interpreters read it unsigned.
	signedLineDeltaVersions = mustConstraint(">=3.6.0-0")
)

// versionFromPath derives the interpreter version from an image
// pathname, e.g. /usr/lib/libpython2.7.so.1.0 or /usr/bin/python3.6m.
func versionFromPath(pathname string) (*semver.Version, error) {
	m := reImage.FindStringSubmatch(pathname)
	if m == nil {
		return nil, errors.Wrapf(ErrNotPython, "%s", pathname)
	}
	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.0", m[2], m[3]))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse version out of %s", pathname)
	}

	return v, nil
}

func isLibImage(pathname string) bool {
	m := reImage.FindStringSubmatch(pathname)

	return m != nil && m[1] == "libpython"
}

func isExeImage(pathname string) bool {
	m := reImage.FindStringSubmatch(pathname)

	return m != nil && m[1] == "python"
}

// Supported reports whether the decoder knows the structure layout of
// the given interpreter version.
func Supported(v *semver.Version) bool {
	return supportedVersions.Check(v)
}

// SignedLineDeltas reports the line-number table convention of the given
// interpreter version.
func SignedLineDeltas(v *semver.Version) bool {
	return signedLineDeltaVersions.Check(v)
}

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}

	return c
}
