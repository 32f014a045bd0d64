package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voxctl/internal/domain"
	"voxctl/internal/ports"
	"voxctl/internal/statestore"
	"voxctl/internal/transcribe"
)

func writeRaw(dir, name, contents string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o600)
}

type spawnRecord struct {
	kind   domain.ProcessKind
	argv   []string
	handle ports.ProcessHandle
}

type fakeSupervisor struct {
	mu       sync.Mutex
	nextPID  int
	startErr error
	alive    map[int]int64 // pid -> fingerprint
	spawns   []spawnRecord
	signals  []string
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{nextPID: 100, alive: map[int]int64{}}
}

func (f *fakeSupervisor) Start(_ context.Context, kind domain.ProcessKind, argv []string) (ports.ProcessHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return ports.ProcessHandle{}, f.startErr
	}
	f.nextPID++
	handle := ports.ProcessHandle{PID: f.nextPID, StartedAt: int64(f.nextPID) * 1000}
	f.alive[handle.PID] = handle.StartedAt
	f.spawns = append(f.spawns, spawnRecord{kind: kind, argv: argv, handle: handle})
	return handle, nil
}

func (f *fakeSupervisor) Signal(handle ports.ProcessHandle, sig ports.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fingerprint, ok := f.alive[handle.PID]
	if !ok || fingerprint != handle.StartedAt {
		return fmt.Errorf("%w: pid %d", domain.ErrNotRunning, handle.PID)
	}
	f.signals = append(f.signals, fmt.Sprintf("%d:%s", handle.PID, sig))
	if sig == ports.SignalStop || sig == ports.SignalKill {
		delete(f.alive, handle.PID)
	}
	return nil
}

func (f *fakeSupervisor) IsAlive(handle ports.ProcessHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	fingerprint, ok := f.alive[handle.PID]
	return ok && fingerprint == handle.StartedAt
}

func (f *fakeSupervisor) WaitForExit(ctx context.Context, handle ports.ProcessHandle) error {
	for f.IsAlive(handle) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

func (f *fakeSupervisor) markDead(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, pid)
}

func (f *fakeSupervisor) spawnsOf(kind domain.ProcessKind) []spawnRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []spawnRecord
	for _, s := range f.spawns {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeTranscriber struct {
	text  string
	err   error
	calls []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.calls = append(f.calls, audioPath)
	return f.text, f.err
}

type fakePaster struct {
	err   error
	texts []string
}

func (f *fakePaster) Paste(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

type fakeRecorderCmd struct {
	dir   string
	count int
}

func (f *fakeRecorderCmd) NewAudioPath() string {
	f.count++
	return filepath.Join(f.dir, fmt.Sprintf("capture-%d.wav", f.count))
}

func (f *fakeRecorderCmd) RecorderArgv(audioPath string) []string {
	return []string{"arecord", audioPath}
}

type fakePlayerCmd struct{}

func (fakePlayerCmd) PlayerArgv(textPath string, cursor int, backend domain.Backend) []string {
	return []string{"player", textPath, fmt.Sprintf("%d", cursor), string(backend)}
}

type fakeNotifier struct {
	infos  []string
	errors []string
	cues   []ports.Cue
}

func (f *fakeNotifier) Info(summary, body string)  { f.infos = append(f.infos, summary+": "+body) }
func (f *fakeNotifier) Error(summary, body string) { f.errors = append(f.errors, summary+": "+body) }
func (f *fakeNotifier) Cue(cue ports.Cue)          { f.cues = append(f.cues, cue) }

type fixture struct {
	ctrl        *Controller
	store       *statestore.Store
	sup         *fakeSupervisor
	transcriber *fakeTranscriber
	paster      *fakePaster
	notifier    *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := statestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	sup := newFakeSupervisor()
	transcriber := &fakeTranscriber{}
	paster := &fakePaster{}
	notifier := &fakeNotifier{}
	ctrl := New(store, sup, transcriber, paster,
		&fakeRecorderCmd{dir: t.TempDir()}, fakePlayerCmd{}, notifier,
		Config{StaleAfter: 5 * time.Minute, StopWait: time.Second})
	return &fixture{ctrl: ctrl, store: store, sup: sup, transcriber: transcriber, paster: paster, notifier: notifier}
}

func (fx *fixture) mustBeIdle(t *testing.T) {
	t.Helper()
	_, err := fx.store.Load()
	if !errors.Is(err, statestore.ErrNotFound) {
		t.Fatalf("expected implicit Idle, got session (err=%v)", err)
	}
}

func TestDictationHappyPath(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.text = "hello world"
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	session, err := fx.store.Load()
	if err != nil {
		t.Fatalf("load after start: %v", err)
	}
	if session.Mode != domain.ModeRecording {
		t.Fatalf("mode = %s, want recording", session.Mode)
	}
	if !session.HasProcess() || session.AudioPath == "" {
		t.Fatalf("recording session missing pid or audioPath: %+v", session)
	}

	if err := fx.ctrl.StopRecording(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if len(fx.transcriber.calls) != 1 || fx.transcriber.calls[0] != session.AudioPath {
		t.Fatalf("transcriber calls %v, want [%s]", fx.transcriber.calls, session.AudioPath)
	}
	if len(fx.paster.texts) != 1 || fx.paster.texts[0] != "hello world" {
		t.Fatalf("paster received %v, want exactly [hello world]", fx.paster.texts)
	}
	wantCues := []ports.Cue{ports.CueStart, ports.CueStop, ports.CueReady}
	if len(fx.notifier.cues) != len(wantCues) {
		t.Fatalf("cues %v, want %v", fx.notifier.cues, wantCues)
	}
	for i, cue := range wantCues {
		if fx.notifier.cues[i] != cue {
			t.Fatalf("cues %v, want %v", fx.notifier.cues, wantCues)
		}
	}
	fx.mustBeIdle(t)
}

func TestFailedDictationSkipsReadyCue(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.err = errors.New("upstream down")
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := fx.ctrl.StopRecording(ctx); !errors.Is(err, domain.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}

	for _, cue := range fx.notifier.cues {
		if cue == ports.CueReady {
			t.Fatalf("ready cue sounded for a failed dictation: %v", fx.notifier.cues)
		}
	}
}

func TestStartRecordingWhileRecordingIsRejectedWithoutSpawn(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	err := fx.ctrl.StartRecording(ctx)
	if !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if got := len(fx.sup.spawnsOf(domain.ProcessRecorder)); got != 1 {
		t.Fatalf("recorder spawned %d times, want 1", got)
	}
}

func TestStopRecordingWhileIdle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	err := fx.ctrl.StopRecording(context.Background())
	if !errors.Is(err, domain.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if len(fx.sup.spawns) != 0 {
		t.Fatalf("spawned processes on a rejected action: %v", fx.sup.spawns)
	}
	fx.mustBeIdle(t)
}

func TestTranscriptionNetworkFailureClearsToIdleWithoutPaste(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.err = fmt.Errorf("%w: connection refused", transcribe.ErrNetwork)
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err := fx.ctrl.StopRecording(ctx)
	if !errors.Is(err, domain.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
	if len(fx.paster.texts) != 0 {
		t.Fatalf("paste happened despite failed transcription: %v", fx.paster.texts)
	}
	fx.mustBeIdle(t)
}

func TestEmptyCaptureShortCircuitsPaste(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.err = fmt.Errorf("%w: 44 bytes", transcribe.ErrEmptyAudio)
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := fx.ctrl.StopRecording(ctx); err != nil {
		t.Fatalf("empty capture should not be an error, got %v", err)
	}
	if len(fx.paster.texts) != 0 {
		t.Fatalf("paste happened for empty capture: %v", fx.paster.texts)
	}
	fx.mustBeIdle(t)
}

func TestEmptyTranscriptShortCircuitsPaste(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.text = ""
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := fx.ctrl.StopRecording(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(fx.paster.texts) != 0 {
		t.Fatalf("paste happened for empty transcript")
	}
	fx.mustBeIdle(t)
}

func TestPasteFailureStillEndsIdle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.transcriber.text = "hello"
	fx.paster.err = fmt.Errorf("%w: window gone", domain.ErrNoFocusTarget)
	ctx := context.Background()

	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err := fx.ctrl.StopRecording(ctx)
	if !errors.Is(err, domain.ErrNoFocusTarget) {
		t.Fatalf("expected ErrNoFocusTarget, got %v", err)
	}
	if len(fx.transcriber.calls) != 1 {
		t.Fatalf("transcription retried after paste failure")
	}
	fx.mustBeIdle(t)
}

func TestSpawnFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.sup.startErr = fmt.Errorf("%w: arecord not found", domain.ErrSpawnFailed)

	err := fx.ctrl.StartRecording(context.Background())
	if !errors.Is(err, domain.ErrSpawnFailed) {
		t.Fatalf("expected ErrSpawnFailed, got %v", err)
	}
	fx.mustBeIdle(t)
}

func TestStaleRecordingSessionIsReaped(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	stale := domain.Session{
		Mode:         domain.ModeRecording,
		PID:          999,
		PIDStartedAt: 999000,
		AudioPath:    filepath.Join(t.TempDir(), "old.wav"),
		CreatedAt:    time.Now().Add(-time.Hour),
	}
	if err := fx.store.Save(stale); err != nil {
		t.Fatalf("seed stale session: %v", err)
	}

	// The dead stale session must not block a new recording.
	if err := fx.ctrl.StartRecording(context.Background()); err != nil {
		t.Fatalf("start after stale session failed: %v", err)
	}
	session, err := fx.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if session.Mode != domain.ModeRecording || session.PID == 999 {
		t.Fatalf("stale session not replaced: %+v", session)
	}
}

func TestFreshSessionWithLiveProcessIsNotReaped(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := fx.ctrl.Speak(ctx, "some text")
	if !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestCorruptRecordIsTreatedAsIdle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	if err := writeRaw(fx.store.Dir(), "session.json", "{broken"); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	if err := fx.ctrl.StartRecording(context.Background()); err != nil {
		t.Fatalf("start after corrupt record failed: %v", err)
	}
}

func TestSpeakThenNavigateAndToggleBackendPreservesCursor(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	text := "p0\n\np1\n\np2\n\np3\n\np4"

	if err := fx.ctrl.Speak(ctx, text); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := fx.ctrl.MoveParagraph(ctx, +1); err != nil {
			t.Fatalf("next paragraph %d failed: %v", i, err)
		}
	}

	session, err := fx.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if session.ParagraphCursor != 3 {
		t.Fatalf("cursor = %d, want 3", session.ParagraphCursor)
	}

	if err := fx.ctrl.ToggleBackend(ctx); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	session, err = fx.store.Load()
	if err != nil {
		t.Fatalf("load after toggle: %v", err)
	}
	if session.ParagraphCursor != 3 {
		t.Fatalf("cursor after toggle = %d, want 3", session.ParagraphCursor)
	}
	if session.Backend != domain.BackendRemote {
		t.Fatalf("backend = %s, want remote", session.Backend)
	}

	players := fx.sup.spawnsOf(domain.ProcessPlayer)
	last := players[len(players)-1]
	if got := strings.Join(last.argv, " "); !strings.HasSuffix(got, "3 remote") {
		t.Fatalf("restarted player argv %q does not resume at cursor 3 under remote", got)
	}
}

func TestNextParagraphClampsAtEnd(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.Speak(ctx, "only\n\ntwo"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := fx.ctrl.MoveParagraph(ctx, +1); err != nil {
			t.Fatalf("next failed: %v", err)
		}
	}
	session, _ := fx.store.Load()
	if session.ParagraphCursor != 1 {
		t.Fatalf("cursor = %d, want clamp at 1", session.ParagraphCursor)
	}
}

func TestPrevParagraphFloorsAtZero(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.Speak(ctx, "one\n\ntwo"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	if err := fx.ctrl.MoveParagraph(ctx, -1); err != nil {
		t.Fatalf("prev failed: %v", err)
	}
	session, _ := fx.store.Load()
	if session.ParagraphCursor != 0 {
		t.Fatalf("cursor = %d, want 0", session.ParagraphCursor)
	}
}

func TestPauseResumeCycle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.Speak(ctx, "something to say"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	if err := fx.ctrl.PauseResume(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	session, _ := fx.store.Load()
	if session.Mode != domain.ModePaused {
		t.Fatalf("mode = %s, want paused", session.Mode)
	}

	if err := fx.ctrl.PauseResume(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	session, _ = fx.store.Load()
	if session.Mode != domain.ModeSpeaking {
		t.Fatalf("mode = %s, want speaking", session.Mode)
	}
}

func TestPauseAfterPlayerFinishedResolvesToIdle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.Speak(ctx, "short"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	session, _ := fx.store.Load()
	fx.sup.markDead(session.PID)

	err := fx.ctrl.PauseResume(ctx)
	if !errors.Is(err, domain.ErrNotSpeaking) {
		t.Fatalf("expected ErrNotSpeaking after natural end, got %v", err)
	}
	fx.mustBeIdle(t)
}

func TestToggleBackendWhileIdleJustFlips(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.ctrl.ToggleBackend(ctx); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if fx.store.Backend() != domain.BackendRemote {
		t.Fatalf("backend = %s, want remote", fx.store.Backend())
	}
	if err := fx.ctrl.ToggleBackend(ctx); err != nil {
		t.Fatalf("toggle back failed: %v", err)
	}
	if fx.store.Backend() != domain.BackendLocal {
		t.Fatalf("backend = %s, want local", fx.store.Backend())
	}
	if len(fx.sup.spawns) != 0 {
		t.Fatalf("toggling while idle spawned a player")
	}
	fx.mustBeIdle(t)
}

func TestMoveParagraphWhileRecordingIsRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := fx.ctrl.MoveParagraph(ctx, +1)
	if !errors.Is(err, domain.ErrNotSpeaking) {
		t.Fatalf("expected ErrNotSpeaking, got %v", err)
	}
}

func TestPausedSessionStaysPausedAcrossNavigation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.Speak(ctx, "a\n\nb\n\nc"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if err := fx.ctrl.PauseResume(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := fx.ctrl.MoveParagraph(ctx, +1); err != nil {
		t.Fatalf("next failed: %v", err)
	}

	session, _ := fx.store.Load()
	if session.Mode != domain.ModePaused {
		t.Fatalf("mode = %s, want paused after navigation", session.Mode)
	}
	// The fresh player must have been paused again.
	last := fx.sup.signals[len(fx.sup.signals)-1]
	if !strings.HasSuffix(last, ":"+string(ports.SignalPause)) {
		t.Fatalf("last signal %q, want a pause on the restarted player", last)
	}
}

func TestCleanKillsOwnedProcessAndClears(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	if err := fx.ctrl.StartRecording(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	session, _ := fx.store.Load()

	if err := fx.ctrl.Clean(ctx); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if fx.sup.IsAlive(ports.ProcessHandle{PID: session.PID, StartedAt: session.PIDStartedAt}) {
		t.Fatalf("recorder still alive after clean")
	}
	fx.mustBeIdle(t)
}

func TestConcurrentStartsSpawnExactlyOneRecorder(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	successes := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- fx.ctrl.StartRecording(ctx)
		}()
	}
	wg.Wait()
	close(successes)

	ok, rejected := 0, 0
	for err := range successes {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrAlreadyActive):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 7 {
		t.Fatalf("ok=%d rejected=%d, want 1/7", ok, rejected)
	}
	if got := len(fx.sup.spawnsOf(domain.ProcessRecorder)); got != 1 {
		t.Fatalf("recorder spawned %d times, want 1", got)
	}
}

func TestSpeakEmptyTextIsNoOp(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	if err := fx.ctrl.Speak(context.Background(), "   \n\n "); err != nil {
		t.Fatalf("speak of empty text failed: %v", err)
	}
	if len(fx.sup.spawns) != 0 {
		t.Fatalf("player spawned for empty text")
	}
	fx.mustBeIdle(t)
}
