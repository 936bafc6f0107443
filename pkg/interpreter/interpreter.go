package interpreter

import (
	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"

	"github.com/maxgio92/pyflame/pkg/proc"
	"github.com/maxgio92/pyflame/pkg/symtable"
)

// threadStateSymbol names the process-wide pointer to the currently
// running thread state.
const threadStateSymbol = "_PyThreadState_Current"

// Interpreter locates the CPython runtime inside the target: which image
// carries the interpreter globals, which version it is, and where the
// current thread-state lives. The lookup runs once per profiling run.
type Interpreter struct {
	ns     *proc.Namespace
	symtab *symtable.ELFSymTab

	version   *semver.Version
	imagePath string
	loadBase  uint64

	// tstateAddr is the dereferenced thread-state address, computed
	// once and immutable for the rest of the run.
	tstateAddr uint64

	*InterpreterOptions
}

func NewInterpreter(opts ...InterpreterOption) *Interpreter {
	interp := &Interpreter{
		InterpreterOptions: &InterpreterOptions{},
	}
	for _, opt := range opts {
		opt(interp)
	}
	interp.symtab = symtable.NewELFSymTab()

	return interp
}

// Detect scans the target's memory maps for the interpreter image. The
// shared runtime library wins over the main executable, since a dynamic
// python binary keeps its globals there; a static build falls back to
// the executable itself.
func (i *Interpreter) Detect() error {
	var err error
	i.ns, err = proc.NewNamespace(i.pid)
	if err != nil {
		return err
	}

	pfs, err := procfs.NewProc(i.pid)
	if err != nil {
		return errors.Wrapf(proc.ErrNoSuchProcess, "pid %d", i.pid)
	}
	maps, err := pfs.ProcMaps()
	if err != nil {
		return errors.Wrapf(err, "failed to read maps of pid %d", i.pid)
	}
	exe, err := pfs.Executable()
	if err != nil {
		return errors.Wrapf(err, "failed to resolve executable of pid %d", i.pid)
	}

	var (
		exePath, libPath   string
		exeStart, libStart uint64
	)
	for _, m := range maps {
		pathname := m.Pathname
		if pathname == "" || !m.Perms.Execute {
			continue
		}
		if pathname == exe && exePath == "" {
			exePath = pathname
			exeStart = uint64(m.StartAddr)
			continue
		}
		if isLibImage(pathname) && libPath == "" {
			libPath = pathname
			libStart = uint64(m.StartAddr)
		}
	}
	if exePath == "" && libPath == "" {
		return errors.Wrapf(ErrNotPython, "pid %d", i.pid)
	}

	switch {
	case libPath != "":
		i.imagePath = i.ns.Resolve(libPath)
		i.loadBase = libStart
		i.version, err = versionFromPath(libPath)
	case isExeImage(exePath):
		i.imagePath = i.ns.Resolve(exePath)
		i.loadBase = exeStart
		i.version, err = versionFromPath(exePath)
	default:
		// A statically linked embedder: the executable is the image,
		// and its own pathname must carry the python version. An
		// executable whose name does not fails here with
		// ErrNotPython, before any symbol lookup.
		i.imagePath = i.ns.Resolve(exePath)
		i.loadBase = exeStart
		i.version, err = versionFromPath(exe)
	}
	if err != nil {
		return err
	}
	if !Supported(i.version) {
		return errors.Wrapf(ErrUnsupportedInterpreter, "python %s", i.version)
	}

	i.logger.Debug().
		Str("image", i.imagePath).
		Str("version", i.version.String()).
		Msg("interpreter detected")

	return nil
}

func (i *Interpreter) Version() *semver.Version {
	return i.version
}

// ThreadStateAddr returns the remote address of the interpreter's
// current thread-state struct. The target must be attached. The first
// call resolves the symbol and dereferences the pointer; the result is
// cached for the remainder of the run.
func (i *Interpreter) ThreadStateAddr() (uint64, error) {
	if i.tstateAddr != 0 {
		return i.tstateAddr, nil
	}
	if i.imagePath == "" {
		if err := i.Detect(); err != nil {
			return 0, err
		}
	}

	if err := i.symtab.Load(i.imagePath); err != nil {
		return 0, err
	}
	sym, err := i.symtab.FindSymbol(threadStateSymbol)
	if err != nil {
		if errors.Is(err, symtable.ErrSymNotFound) {
			return 0, errors.Wrapf(ErrUnsupportedInterpreter, "python %s lacks %s", i.version, threadStateSymbol)
		}
		return 0, err
	}

	symAddr := sym.Value + i.symtab.LoadBias(i.loadBase)
	tstate, err := i.process.PeekWord(symAddr)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s at %#x", threadStateSymbol, symAddr)
	}
	if tstate == 0 {
		return 0, errors.Wrapf(ErrInterpreterNotReady, "%s is null", threadStateSymbol)
	}

	i.tstateAddr = tstate
	i.logger.Debug().
		Uint64("symbol", symAddr).
		Uint64("tstate", tstate).
		Msg("thread state located")

	return tstate, nil
}
