package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// WithLock runs fn while holding an exclusive advisory lock on the
// store's lock file. The lock is tied to the file descriptor, so a
// crashed holder releases it when the kernel closes its descriptors;
// no explicit unlock is ever required for recovery.
//
// The acquire blocks until the current holder finishes. Every action
// entry point serializes through here, making each transition a single
// load-validate-effect-save critical section.
func (s *Store) WithLock(ctx context.Context, fn func() error) error {
	f, err := os.OpenFile(filepath.Join(s.dir, lockFile), os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if err := flockCtx(ctx, f); err != nil {
		return err
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()

	return fn()
}

// TryLock reports whether the lock is currently free by attempting a
// non-blocking acquire. Used by status reporting only.
func (s *Store) TryLock() (bool, error) {
	f, err := os.OpenFile(filepath.Join(s.dir, lockFile), os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe lock: %w", err)
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return true, nil
}

// flockCtx acquires a blocking exclusive flock while honoring context
// cancellation. Flock has no native deadline, so the blocking call runs
// in a goroutine and an abandoned acquire releases itself on return.
func flockCtx(ctx context.Context, f *os.File) error {
	done := make(chan error, 1)
	go func() {
		done <- syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to acquire state lock: %w", err)
		}
		return nil
	case <-ctx.Done():
		go func() {
			if err := <-done; err == nil {
				_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			}
		}()
		return ctx.Err()
	}
}
