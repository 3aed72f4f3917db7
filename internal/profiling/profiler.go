// Package profiling captures CPU, heap and execution-trace profiles around a
// single CLI invocation.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/hashicorp/go-multierror"
)

// Profile file names written into the session directory.
const (
	CPUFile   = "cpu.pprof"
	HeapFile  = "heap.pprof"
	TraceFile = "trace.out"
)

// Kinds selects the profiles a session records.
type Kinds struct {
	CPU   bool
	Heap  bool
	Trace bool
}

// All records every profile.
var All = Kinds{CPU: true, Heap: true, Trace: true}

// Session is a running profile capture. Stop must be called exactly once.
type Session struct {
	dir   string
	kinds Kinds
	cpu   *os.File
	trace *os.File
}

// Start creates dir and begins the CPU profile and trace selected by kinds.
func Start(dir string, kinds Kinds) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	s := &Session{dir: dir, kinds: kinds}

	if kinds.CPU {
		f, err := os.Create(filepath.Join(dir, CPUFile))
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		s.cpu = f
	}

	if kinds.Trace {
		f, err := os.Create(filepath.Join(dir, TraceFile))
		if err != nil {
			s.stopCPU()
			return nil, fmt.Errorf("failed to create trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		s.trace = f
	}

	return s, nil
}

// Dir returns the directory profiles are written to.
func (s *Session) Dir() string {
	return s.dir
}

// Stop ends the CPU profile and trace, then writes a heap snapshot.
func (s *Session) Stop() error {
	var result error

	if err := s.stopCPU(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.trace != nil {
		trace.Stop()
		if err := s.trace.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close trace: %w", err))
		}
		s.trace = nil
	}
	if s.kinds.Heap {
		if err := writeHeap(filepath.Join(s.dir, HeapFile)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := s.cpu.Close()
	s.cpu = nil
	if err != nil {
		return fmt.Errorf("failed to close CPU profile: %w", err)
	}
	return nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
