// Package supervisor spawns and tracks the external recorder and player
// processes. Children are detached into their own session so they
// outlive the short-lived invocation that started them, and they are
// only ever signaled after the pid's start-time fingerprint has been
// verified, so a recycled pid belonging to an unrelated process is
// never touched.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
	"voxctl/internal/ports"
)

const (
	// spawnGrace is how long a fresh child must survive before the
	// spawn is considered successful.
	spawnGrace = 250 * time.Millisecond

	// exitPollInterval paces WaitForExit liveness polling. Children
	// started by another invocation are not our children, so waitpid
	// is unavailable and polling is the only portable observation.
	exitPollInterval = 50 * time.Millisecond
)

// Supervisor implements ports.Supervisor on top of os/exec and /proc.
type Supervisor struct {
	logDir   string
	scrubEnv []string
}

// New creates a Supervisor writing child stderr into logDir. The named
// environment variables are stripped from every child's environment:
// credentials supplied through the environment stay with the invoking
// process, recorder and playback binaries never see them.
func New(logDir string, scrubEnv ...string) *Supervisor {
	return &Supervisor{logDir: logDir, scrubEnv: scrubEnv}
}

// Start spawns a detached child for the given kind. It fails with
// domain.ErrSpawnFailed if the executable is missing or the child dies
// within the grace window; in that case no handle is returned and the
// caller must not mutate any session state.
func (s *Supervisor) Start(ctx context.Context, kind domain.ProcessKind, argv []string) (ports.ProcessHandle, error) {
	if len(argv) == 0 {
		return ports.ProcessHandle{}, fmt.Errorf("%w: empty command", domain.ErrSpawnFailed)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Env = s.childEnv()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = s.openLog(kind)

	if err := cmd.Start(); err != nil {
		return ports.ProcessHandle{}, fmt.Errorf("%w: %s: %v", domain.ErrSpawnFailed, argv[0], err)
	}

	pid := cmd.Process.Pid
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return ports.ProcessHandle{}, fmt.Errorf("%w: %s exited immediately: %v", domain.ErrSpawnFailed, argv[0], err)
		}
		return ports.ProcessHandle{}, fmt.Errorf("%w: %s exited immediately", domain.ErrSpawnFailed, argv[0])
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return ports.ProcessHandle{}, ctx.Err()
	case <-time.After(spawnGrace):
	}

	// Keep reaping in the background so a long-lived invocation never
	// accumulates zombies. Short-lived invocations exit first and init
	// reaps for them.
	go func() { <-waitErr }()

	startedAt, err := processStartTime(pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return ports.ProcessHandle{}, fmt.Errorf("%w: cannot fingerprint pid %d: %v", domain.ErrSpawnFailed, pid, err)
	}

	logger.Debug("child started", "kind", string(kind), "pid", pid, "cmd", argv[0])
	return ports.ProcessHandle{PID: pid, StartedAt: startedAt}, nil
}

// Signal delivers a control signal after verifying the handle still
// refers to the process we started. Pause, resume and kill go to the
// whole process group so pipeline children (piper | aplay) follow.
func (s *Supervisor) Signal(handle ports.ProcessHandle, sig ports.Signal) error {
	if !s.IsAlive(handle) {
		return fmt.Errorf("%w: pid %d", domain.ErrNotRunning, handle.PID)
	}

	var unixSig syscall.Signal
	group := true
	switch sig {
	case ports.SignalStop:
		// The recorder flushes and finalizes its file on SIGINT.
		unixSig, group = syscall.SIGINT, false
	case ports.SignalKill:
		unixSig = syscall.SIGTERM
	case ports.SignalPause:
		unixSig = syscall.SIGSTOP
	case ports.SignalResume:
		unixSig = syscall.SIGCONT
	default:
		return fmt.Errorf("unknown signal %q", sig)
	}

	target := handle.PID
	if group {
		target = -handle.PID
	}
	if err := syscall.Kill(target, unixSig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("%w: pid %d", domain.ErrNotRunning, handle.PID)
		}
		return fmt.Errorf("failed to signal pid %d: %w", handle.PID, err)
	}
	return nil
}

// IsAlive reports whether the handle's process is still running and is
// still the process we started. A zombie counts as exited.
func (s *Supervisor) IsAlive(handle ports.ProcessHandle) bool {
	if handle.PID <= 0 {
		return false
	}
	proc, err := process.NewProcess(int32(handle.PID))
	if err != nil {
		return false
	}
	startedAt, err := proc.CreateTime()
	if err != nil || startedAt != handle.StartedAt {
		return false
	}
	statuses, err := proc.Status()
	if err != nil {
		return false
	}
	for _, status := range statuses {
		if status == process.Zombie {
			return false
		}
	}
	return true
}

// WaitForExit blocks until the process is gone or ctx expires.
func (s *Supervisor) WaitForExit(ctx context.Context, handle ports.ProcessHandle) error {
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()

	for {
		if !s.IsAlive(handle) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// childEnv is the inherited environment minus the scrubbed names.
func (s *Supervisor) childEnv() []string {
	env := os.Environ()
	if len(s.scrubEnv) == 0 {
		return env
	}
	kept := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if slices.Contains(s.scrubEnv, name) {
			continue
		}
		kept = append(kept, kv)
	}
	return kept
}

// openLog opens an append-only per-kind stderr log inside the state
// directory. The file stays valid after the spawning invocation exits,
// unlike an inherited pipe.
func (s *Supervisor) openLog(kind domain.ProcessKind) *os.File {
	if strings.TrimSpace(s.logDir) == "" {
		return nil
	}
	path := filepath.Join(s.logDir, string(kind)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger.Warn("cannot open child log", "path", path, "error", err)
		return nil
	}
	return f
}

func processStartTime(pid int) (int64, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	return proc.CreateTime()
}
