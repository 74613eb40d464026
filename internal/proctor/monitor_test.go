package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStream struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeStream) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeEnv implements every environment port the monitor needs.
type fakeEnv struct {
	mu sync.Mutex

	consent    bool
	consentErr error
	acquires   int
	cameraErr  error
	stream     *fakeStream

	enterErr     error
	enters       int
	exits        int
	enterErrOnce bool // fail re-entry attempts only, not the initial one

	notices []string
	reports []Report

	subs   map[EventKind]map[int]ListenerFunc
	nextID int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		consent: true,
		stream:  &fakeStream{},
		subs:    make(map[EventKind]map[int]ListenerFunc),
	}
}

func (f *fakeEnv) Request(ctx context.Context) (bool, error) {
	return f.consent, f.consentErr
}

func (f *fakeEnv) Acquire(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	if f.cameraErr != nil {
		return nil, f.cameraErr
	}
	return f.stream, nil
}

func (f *fakeEnv) EnterFullscreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enters++
	if f.enterErrOnce && f.enters == 1 {
		return nil
	}
	return f.enterErr
}

func (f *fakeEnv) ExitFullscreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits++
}

func (f *fakeEnv) Notify(message string, severity Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *fakeEnv) Report(ctx context.Context, r Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeEnv) Subscribe(kind EventKind, fn ListenerFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[kind] == nil {
		f.subs[kind] = make(map[int]ListenerFunc)
	}
	id := f.nextID
	f.nextID++
	f.subs[kind][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[kind], id)
	}
}

func (f *fakeEnv) activeListeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.subs {
		n += len(m)
	}
	return n
}

// Fire dispatches an event like the real shell would; it reports whether
// any listener asked for suppression.
func (f *fakeEnv) Fire(kind EventKind, detail string) bool {
	f.mu.Lock()
	fns := make([]ListenerFunc, 0, len(f.subs[kind]))
	for _, fn := range f.subs[kind] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	suppress := false
	for _, fn := range fns {
		if fn(Event{Kind: kind, Detail: detail}) {
			suppress = true
		}
	}
	return suppress
}

func (f *fakeEnv) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []SubmitRequest
	errs  []error
}

func (f *fakeSubmitter) Submit(ctx context.Context, req SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestMonitor(t *testing.T, env *fakeEnv, mutate func(*Config)) *Monitor {
	t.Helper()
	cfg := Config{
		ExamID:        "exam-1",
		MaxViolations: 100,
		Camera:        env,
		Screen:        env,
		Consent:       env,
		Notifier:      env,
		Reporter:      env,
		Events:        env,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewMonitor(cfg)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	return m
}

func TestStartRegistersListeners(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	if !m.Active() {
		t.Error("monitor should be active after Start")
	}
	if got := env.activeListeners(); got != 6 {
		t.Errorf("active listeners = %d, want 6", got)
	}
	if env.enters != 1 {
		t.Errorf("fullscreen enters = %d, want 1", env.enters)
	}
}

func TestStartCameraDeniedIsTransactional(t *testing.T) {
	env := newFakeEnv()
	env.cameraErr = errors.New("NotAllowedError")
	m := newTestMonitor(t, env, nil)

	err := m.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if m.Active() {
		t.Error("monitor must stay inactive after denied start")
	}
	if got := env.activeListeners(); got != 0 {
		t.Errorf("active listeners after failed start = %d, want 0", got)
	}

	// No detection callback may fire after a failed start.
	env.Fire(EventFullscreenExit, "")
	m.Flush()
	if m.ViolationCount() != 0 {
		t.Errorf("violation count after failed start = %d, want 0", m.ViolationCount())
	}
	if env.reportCount() != 0 {
		t.Errorf("reports after failed start = %d, want 0", env.reportCount())
	}
}

func TestStartConsentDeclined(t *testing.T) {
	env := newFakeEnv()
	env.consent = false
	m := newTestMonitor(t, env, nil)

	if err := m.Start(context.Background()); !errors.Is(err, ErrConsentDeclined) {
		t.Fatalf("Start() error = %v, want ErrConsentDeclined", err)
	}
	if env.acquires != 0 {
		t.Error("camera must not be acquired without consent")
	}
}

func TestStartFullscreenDeniedReleasesCamera(t *testing.T) {
	env := newFakeEnv()
	env.enterErr = errors.New("fullscreen blocked")
	m := newTestMonitor(t, env, nil)

	if err := m.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if env.stream.closeCount() != 1 {
		t.Errorf("camera stream closes = %d, want 1", env.stream.closeCount())
	}
	if got := env.activeListeners(); got != 0 {
		t.Errorf("active listeners = %d, want 0", got)
	}
}

func TestRecordViolationMonotonic(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	types := []ViolationType{
		TypeTabSwitch, TypeMouseLeft, TypeRightClick,
		TypeCopyPaste, TypeFocusLost, TypeBlockedKey, TypeDevTools,
	}
	for _, vt := range types {
		m.RecordViolation(vt, "")
	}
	if got := m.ViolationCount(); got != len(types) {
		t.Errorf("violation count = %d, want %d", got, len(types))
	}

	m.Flush()
	if env.reportCount() != len(types) {
		t.Errorf("reports = %d, want %d", env.reportCount(), len(types))
	}
}

func TestAutoSubmitFiresExactlyOnce(t *testing.T) {
	env := newFakeEnv()
	sub := &fakeSubmitter{}
	m := newTestMonitor(t, env, func(cfg *Config) {
		cfg.MaxViolations = 3
		cfg.Submit = &AutoSubmitCoordinator{Submitter: sub, Notifier: env}
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		m.RecordViolation(TypeTabSwitch, "")
	}
	m.Flush()

	if got := sub.callCount(); got != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", got)
	}
	if !sub.calls[0].AutoSubmit {
		t.Error("submission must be tagged auto_submit")
	}
	// Calls 4 and 5 land on an inactive session.
	if got := m.ViolationCount(); got != 3 {
		t.Errorf("violation count = %d, want 3", got)
	}
	if m.Active() {
		t.Error("session must be stopped after auto-submit")
	}
	if env.stream.closeCount() != 1 {
		t.Errorf("camera closes = %d, want 1", env.stream.closeCount())
	}

	// Exactly one report carries the flag: the threshold-crossing one.
	env.mu.Lock()
	defer env.mu.Unlock()
	flagged := 0
	for _, r := range env.reports {
		if r.CausedAutoSubmit {
			flagged++
			if r.Count != 3 {
				t.Errorf("flagged report count = %d, want 3", r.Count)
			}
		}
	}
	if flagged != 1 {
		t.Errorf("reports with caused_auto_submit = %d, want 1", flagged)
	}
}

func TestStopIdempotent(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.Stop()
	m.Stop()

	if m.Active() {
		t.Error("monitor should be inactive")
	}
	if env.stream.closeCount() != 1 {
		t.Errorf("camera closes = %d, want 1", env.stream.closeCount())
	}
	if got := env.activeListeners(); got != 0 {
		t.Errorf("active listeners = %d, want 0", got)
	}
	if env.exits != 1 {
		t.Errorf("fullscreen exits = %d, want 1", env.exits)
	}

	env.Fire(EventHidden, "")
	if m.ViolationCount() != 0 {
		t.Error("no violations may be recorded after Stop")
	}
}

func TestBlurCoalescedAfterTabSwitch(t *testing.T) {
	env := newFakeEnv()
	now := time.Unix(1700000000, 0)
	m := newTestMonitor(t, env, func(cfg *Config) {
		cfg.Now = func() time.Time { return now }
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	// One tab switch fires visibilitychange then blur back-to-back.
	env.Fire(EventHidden, "")
	now = now.Add(100 * time.Millisecond)
	env.Fire(EventBlur, "")
	if got := m.ViolationCount(); got != 1 {
		t.Fatalf("coalesced count = %d, want 1", got)
	}

	// A blur on its own, outside the window, counts.
	now = now.Add(5 * time.Second)
	env.Fire(EventBlur, "")
	if got := m.ViolationCount(); got != 2 {
		t.Errorf("count after standalone blur = %d, want 2", got)
	}
}

func TestContextMenuAlwaysSuppressed(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	for i := 0; i < 3; i++ {
		if !env.Fire(EventContextMenu, "") {
			t.Fatalf("context menu fire %d not suppressed", i+1)
		}
	}
	if got := m.ViolationCount(); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestKeyFiltering(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	if !env.Fire(EventKeyDown, "F12") {
		t.Error("F12 should be suppressed")
	}
	if !env.Fire(EventKeyDown, "Ctrl+Shift+I") {
		t.Error("Ctrl+Shift+I should be suppressed")
	}
	if env.Fire(EventKeyDown, "A") {
		t.Error("plain keys must pass through")
	}
	if got := m.ViolationCount(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestFullscreenReentryFailureRecorded(t *testing.T) {
	env := newFakeEnv()
	env.enterErrOnce = true
	env.enterErr = errors.New("denied")
	m := newTestMonitor(t, env, func(cfg *Config) {
		cfg.FullscreenRetry = 10 * time.Millisecond
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	env.Fire(EventFullscreenExit, "")
	time.Sleep(60 * time.Millisecond)
	m.Flush()

	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.reports) != 2 {
		t.Fatalf("reports = %d, want 2 (exit + failed re-entry)", len(env.reports))
	}
	seen := map[ViolationType]bool{}
	for _, r := range env.reports {
		seen[r.Type] = true
	}
	if !seen[TypeFullscreenExit] || !seen[TypeFullscreenEntryFail] {
		t.Errorf("report types = %v, want fullscreen-exit and fullscreen-entry-failed", seen)
	}
}

func TestUnknownTypeCoercedToOther(t *testing.T) {
	env := newFakeEnv()
	m := newTestMonitor(t, env, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	m.RecordViolation("something-new", "detail")
	m.Flush()

	env.mu.Lock()
	defer env.mu.Unlock()
	if env.reports[0].Type != TypeOther {
		t.Errorf("reported type = %s, want %s", env.reports[0].Type, TypeOther)
	}
}
