package settings

import "fmt"

const (
	CmdName = "pyflame"
	Version = "1.6.0"
)

var (
	VersionString = fmt.Sprintf("%s %s", CmdName, Version)
	BuildNote     = "ptrace-based CPython sampling profiler for Linux"
)
