package proctor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	// ErrConsentDeclined means the student refused proctoring; the exam
	// must not be entered.
	ErrConsentDeclined = errors.New("proctor: consent declined")
	// ErrPermissionDenied means camera or fullscreen access was refused.
	ErrPermissionDenied = errors.New("proctor: permission denied")
)

// Stream is a held capture device handle. Closing it releases the device.
type Stream interface {
	Close() error
}

// Camera grants access to the capture device. Implementations return
// ErrPermissionDenied (wrapped or bare) when the user refuses access.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Screen controls fullscreen mode of the exam surface.
type Screen interface {
	EnterFullscreen() error
	ExitFullscreen()
}

// Consent asks the student to accept proctoring before the session starts.
type Consent interface {
	Request(ctx context.Context) (bool, error)
}

// Notifier delivers user-visible feedback. Implementations must not block.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Report is one classified violation ready to be persisted.
type Report struct {
	ExamID           string        `json:"exam_id"`
	Type             ViolationType `json:"violation_type"`
	Detail           string        `json:"detail,omitempty"`
	Count            int           `json:"violation_count"`
	Timestamp        time.Time     `json:"timestamp"`
	CausedAutoSubmit bool          `json:"caused_auto_submit"`
}

// Reporter ships a report to the violation store. Calls are made from the
// monitor asynchronously and are best-effort: an error is traced, never
// propagated to the session.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// ListenerFunc handles one environment event. Returning true tells the
// event source to suppress the default action (key press, context menu).
type ListenerFunc func(Event) bool

// EventSource is the environment surface the monitor subscribes to.
// Subscribe returns a cancel func; cancelling twice must be harmless.
type EventSource interface {
	Subscribe(kind EventKind, fn ListenerFunc) (cancel func())
}

const (
	// DefaultMaxViolations is the auto-submit threshold.
	DefaultMaxViolations = 3
	// defaultCoalesceWindow swallows the window-blur that trails the
	// visibilitychange of a single tab switch.
	defaultCoalesceWindow = 750 * time.Millisecond
	// defaultFullscreenRetry delays re-entry after a fullscreen exit.
	defaultFullscreenRetry = time.Second
)

// Config wires a Monitor to its environment. Camera, Screen, Consent,
// Notifier, Reporter and Events are required; the rest defaults.
type Config struct {
	ExamID        string
	MaxViolations int

	Camera   Camera
	Screen   Screen
	Consent  Consent
	Notifier Notifier
	Reporter Reporter
	Events   EventSource

	// Submit handles threshold-crossing; optional (a nil coordinator
	// means the caller polls Exceeded itself).
	Submit *AutoSubmitCoordinator

	// Now is the session clock; defaults to time.Now.
	Now func() time.Time
	// CoalesceWindow and FullscreenRetry override the default timings.
	CoalesceWindow  time.Duration
	FullscreenRetry time.Duration
}

// Monitor owns the mutable proctoring state for one exam attempt. It is
// inactive until Start succeeds and permanently inactive after Stop.
type Monitor struct {
	cfg Config

	mu            sync.Mutex
	active        bool
	count         int
	stream        Stream
	cancels       []func()
	lastTabSwitch time.Time

	reports sync.WaitGroup
}

// NewMonitor validates cfg and applies defaults. The returned monitor is
// inactive; call Start to begin a session.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.ExamID == "" {
		return nil, errors.New("proctor: exam id required")
	}
	if cfg.Camera == nil || cfg.Screen == nil || cfg.Consent == nil ||
		cfg.Notifier == nil || cfg.Reporter == nil || cfg.Events == nil {
		return nil, errors.New("proctor: missing environment port")
	}
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = DefaultMaxViolations
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CoalesceWindow <= 0 {
		cfg.CoalesceWindow = defaultCoalesceWindow
	}
	if cfg.FullscreenRetry <= 0 {
		cfg.FullscreenRetry = defaultFullscreenRetry
	}
	return &Monitor{cfg: cfg}, nil
}

// Start runs the consent dialog, acquires the camera, enters fullscreen
// and registers all detection listeners. All-or-nothing: on any failure
// the monitor stays inactive with zero listeners and no held devices.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return errors.New("proctor: session already active")
	}

	ok, err := m.cfg.Consent.Request(ctx)
	if err != nil {
		return fmt.Errorf("proctor: consent dialog: %w", err)
	}
	if !ok {
		return ErrConsentDeclined
	}

	stream, err := m.cfg.Camera.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: camera: %v", ErrPermissionDenied, err)
	}

	if err := m.cfg.Screen.EnterFullscreen(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: fullscreen: %v", ErrPermissionDenied, err)
	}

	m.stream = stream
	m.subscribeLocked()
	m.active = true
	return nil
}

func (m *Monitor) subscribeLocked() {
	sub := func(kind EventKind, fn ListenerFunc) {
		m.cancels = append(m.cancels, m.cfg.Events.Subscribe(kind, fn))
	}
	sub(EventFullscreenExit, m.onFullscreenExit)
	sub(EventHidden, m.onHidden)
	sub(EventBlur, m.onBlur)
	sub(EventMouseLeave, m.onMouseLeave)
	sub(EventContextMenu, m.onContextMenu)
	sub(EventKeyDown, m.onKeyDown)
}

func (m *Monitor) onFullscreenExit(Event) bool {
	m.RecordViolation(TypeFullscreenExit, "")
	// Try to pull the student back in after a short grace period.
	time.AfterFunc(m.cfg.FullscreenRetry, func() {
		if !m.Active() {
			return
		}
		if err := m.cfg.Screen.EnterFullscreen(); err != nil {
			m.RecordViolation(TypeFullscreenEntryFail, err.Error())
		}
	})
	return false
}

func (m *Monitor) onHidden(Event) bool {
	m.mu.Lock()
	m.lastTabSwitch = m.cfg.Now()
	m.mu.Unlock()
	m.RecordViolation(TypeTabSwitch, "")
	return false
}

// onBlur swallows the blur that the environment fires back-to-back with a
// visibilitychange on one tab switch, so a single switch counts once.
func (m *Monitor) onBlur(Event) bool {
	m.mu.Lock()
	recent := !m.lastTabSwitch.IsZero() &&
		m.cfg.Now().Sub(m.lastTabSwitch) < m.cfg.CoalesceWindow
	m.mu.Unlock()
	if recent {
		return false
	}
	m.RecordViolation(TypeFocusLost, "")
	return false
}

func (m *Monitor) onMouseLeave(Event) bool {
	m.RecordViolation(TypeMouseLeft, "")
	return false
}

func (m *Monitor) onContextMenu(Event) bool {
	m.RecordViolation(TypeRightClick, "")
	// The context menu stays suppressed no matter the violation count.
	return true
}

func (m *Monitor) onKeyDown(ev Event) bool {
	t, blocked := classifyKey(ev.Detail)
	if !blocked {
		return false
	}
	m.RecordViolation(t, ev.Detail)
	return true
}

// RecordViolation increments the session counter, warns the student,
// logs the violation asynchronously and evaluates the auto-submit
// threshold. No-op once the session is inactive.
func (m *Monitor) RecordViolation(t ViolationType, detail string) {
	t = Normalize(string(t))

	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.count++
	count := m.count
	crossed := count >= m.cfg.MaxViolations
	m.mu.Unlock()

	sev := Classify(t)
	m.cfg.Notifier.Notify(
		fmt.Sprintf("Violation %d of %d: %s", count, m.cfg.MaxViolations, t), sev)

	rep := Report{
		ExamID:           m.cfg.ExamID,
		Type:             t,
		Detail:           detail,
		Count:            count,
		Timestamp:        m.cfg.Now().UTC(),
		CausedAutoSubmit: crossed,
	}
	m.reports.Add(1)
	go func() {
		defer m.reports.Done()
		if err := m.cfg.Reporter.Report(context.Background(), rep); err != nil {
			log.Printf("proctor: violation log failed: %v", err)
		}
	}()

	if crossed {
		// Release the camera and listeners before the submit attempt;
		// cleanup never depends on the submission outcome.
		m.Stop()
		if m.cfg.Submit != nil {
			m.cfg.Submit.Trigger(context.Background(), m.cfg.ExamID)
		}
	}
}

// Stop tears down listeners, releases the camera and exits fullscreen.
// Idempotent; every exit path (submit, auto-submit, navigation, logout)
// must reach it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	cancels := m.cancels
	stream := m.stream
	m.cancels = nil
	m.stream = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Printf("proctor: camera release: %v", err)
		}
	}
	m.cfg.Screen.ExitFullscreen()
}

// Active reports whether the session is live.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ViolationCount returns the number of violations recorded this session.
func (m *Monitor) ViolationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Flush blocks until all in-flight violation logs have completed. Used on
// shutdown so best-effort reports get their chance to land.
func (m *Monitor) Flush() {
	m.reports.Wait()
}
