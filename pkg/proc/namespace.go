package proc

import (
	"fmt"
	"path"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// Namespace resolves paths the way the target sees them. The kernel
// exposes the target's mount namespace under /proc/<pid>/root, so every
// path read out of the target's maps is reachable by prefixing it, even
// for containerised targets.
type Namespace struct {
	pid  int
	proc procfs.Proc
}

func NewNamespace(pid int) (*Namespace, error) {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return nil, errors.Wrapf(ErrNoSuchProcess, "pid %d", pid)
	}

	return &Namespace{pid: pid, proc: proc}, nil
}

// ExePath returns the path to the target's main executable, opened
// through the target's own mount namespace.
func (n *Namespace) ExePath() (string, error) {
	exe, err := n.proc.Executable()
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve executable of pid %d", n.pid)
	}

	return n.Resolve(exe), nil
}

// LibPath returns the path of a shared object loaded by the target,
// given its basename prefix (e.g. "libpython"). Resolution scans the
// target's memory maps.
func (n *Namespace) LibPath(soname string) (string, error) {
	maps, err := n.proc.ProcMaps()
	if err != nil {
		return "", errors.Wrapf(err, "failed to read maps of pid %d", n.pid)
	}
	for _, m := range maps {
		if m.Pathname == "" {
			continue
		}
		if matchSoname(path.Base(m.Pathname), soname) {
			return n.Resolve(m.Pathname), nil
		}
	}

	return "", errors.Wrapf(ErrNotMapped, "%s in pid %d", soname, n.pid)
}

// Resolve turns a path valid inside the target's mount namespace into
// one the profiler can open.
func (n *Namespace) Resolve(p string) string {
	return fmt.Sprintf("/proc/%d/root%s", n.pid, p)
}

func matchSoname(base, soname string) bool {
	if len(base) < len(soname) {
		return false
	}

	return base[:len(soname)] == soname
}
