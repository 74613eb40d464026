// Package agent embeds the proctoring monitor into a sidecar process for
// the desktop exam shell. The shell streams environment events as
// line-delimited JSON on the agent's stdin; the agent answers with
// command lines (notifications, suppression, fullscreen control) on
// stdout and reports violations to the backend over HTTP.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/zaqqye/proctor_backend/internal/proctor"
)

// Command is one outbound instruction to the exam shell.
type Command struct {
	Op       string `json:"op"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Detail   string `json:"detail,omitempty"`
	ExamID   string `json:"exam_id,omitempty"`
	Auto     bool   `json:"auto_submit,omitempty"`
}

// Control events the shell sends outside the detection set.
const (
	eventConsentGranted = proctor.EventKind("consent-granted")
	eventConsentDenied  = proctor.EventKind("consent-denied")
	eventCameraGranted  = proctor.EventKind("camera-granted")
	eventCameraDenied   = proctor.EventKind("camera-denied")
	eventShutdown       = proctor.EventKind("shutdown")
)

// Shell is the agent's half of the stdio protocol. It implements the
// monitor's environment ports: EventSource, Notifier, Screen, Camera
// and Consent.
type Shell struct {
	mu     sync.Mutex
	out    *bufio.Writer
	nextID int
	subs   map[proctor.EventKind]map[int]proctor.ListenerFunc

	consentCh chan bool
	cameraCh  chan bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewShell(out io.Writer) *Shell {
	return &Shell{
		out:       bufio.NewWriter(out),
		subs:      make(map[proctor.EventKind]map[int]proctor.ListenerFunc),
		consentCh: make(chan bool, 1),
		cameraCh:  make(chan bool, 1),
		done:      make(chan struct{}),
	}
}

// Run reads shell events until EOF or a shutdown event. Malformed lines
// are traced and skipped; the exam must not die on a glitchy shell.
func (s *Shell) Run(r io.Reader) {
	defer s.closeOnce.Do(func() { close(s.done) })

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<16)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev proctor.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Printf("agent: bad event line: %v", err)
			continue
		}
		if s.handleControl(ev) {
			continue
		}
		s.dispatch(ev)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("agent: event stream: %v", err)
	}
}

// Done closes when the shell stream has ended.
func (s *Shell) Done() <-chan struct{} {
	return s.done
}

func (s *Shell) handleControl(ev proctor.Event) bool {
	switch ev.Kind {
	case eventConsentGranted:
		trySend(s.consentCh, true)
	case eventConsentDenied:
		trySend(s.consentCh, false)
	case eventCameraGranted:
		trySend(s.cameraCh, true)
	case eventCameraDenied:
		trySend(s.cameraCh, false)
	case eventShutdown:
		s.closeOnce.Do(func() { close(s.done) })
	default:
		return false
	}
	return true
}

func trySend(ch chan bool, v bool) {
	select {
	case ch <- v:
	default:
	}
}

func (s *Shell) dispatch(ev proctor.Event) {
	s.mu.Lock()
	fns := make([]proctor.ListenerFunc, 0, len(s.subs[ev.Kind]))
	for _, fn := range s.subs[ev.Kind] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	suppress := false
	for _, fn := range fns {
		if fn(ev) {
			suppress = true
		}
	}
	if suppress {
		s.write(Command{Op: "suppress", Kind: string(ev.Kind), Detail: ev.Detail})
	}
}

// Subscribe registers a listener; the returned cancel is idempotent.
func (s *Shell) Subscribe(kind proctor.EventKind, fn proctor.ListenerFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[kind] == nil {
		s.subs[kind] = make(map[int]proctor.ListenerFunc)
	}
	id := s.nextID
	s.nextID++
	s.subs[kind][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[kind], id)
	}
}

func (s *Shell) write(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(cmd)
	if err != nil {
		log.Printf("agent: marshal command: %v", err)
		return
	}
	s.out.Write(data)
	s.out.WriteByte('\n')
	s.out.Flush()
}

// Notify implements proctor.Notifier.
func (s *Shell) Notify(message string, severity proctor.Severity) {
	s.write(Command{Op: "notify", Message: message, Severity: string(severity)})
}

// EnterFullscreen implements proctor.Screen.
func (s *Shell) EnterFullscreen() error {
	s.write(Command{Op: "enter-fullscreen"})
	return nil
}

// ExitFullscreen implements proctor.Screen.
func (s *Shell) ExitFullscreen() {
	s.write(Command{Op: "exit-fullscreen"})
}

// Request implements proctor.Consent: ask the shell to show the consent
// dialog and wait for the student's answer.
func (s *Shell) Request(ctx context.Context) (bool, error) {
	s.write(Command{Op: "request-consent"})
	select {
	case ok := <-s.consentCh:
		return ok, nil
	case <-s.done:
		return false, errors.New("agent: shell closed during consent")
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type cameraStream struct {
	shell *Shell
	once  sync.Once
}

func (c *cameraStream) Close() error {
	c.once.Do(func() {
		c.shell.write(Command{Op: "release-camera"})
	})
	return nil
}

// Acquire implements proctor.Camera.
func (s *Shell) Acquire(ctx context.Context) (proctor.Stream, error) {
	s.write(Command{Op: "request-camera"})
	select {
	case ok := <-s.cameraCh:
		if !ok {
			return nil, errors.New("camera access refused")
		}
		return &cameraStream{shell: s}, nil
	case <-s.done:
		return nil, errors.New("agent: shell closed during camera request")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NavigateToExam implements proctor.Navigator: the fallback submit path
// tells the shell to reload the exam page with an auto-submit flag.
func (s *Shell) NavigateToExam(examID string, autoSubmit bool) {
	s.write(Command{Op: "navigate", ExamID: examID, Auto: autoSubmit})
}
