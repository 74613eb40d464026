package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string, severity Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type recordingNavigator struct {
	examID string
	auto   bool
	calls  int
}

func (n *recordingNavigator) NavigateToExam(examID string, autoSubmit bool) {
	n.examID = examID
	n.auto = autoSubmit
	n.calls++
}

func TestTriggerFiresOnce(t *testing.T) {
	sub := &fakeSubmitter{}
	c := &AutoSubmitCoordinator{Submitter: sub}

	for i := 0; i < 4; i++ {
		c.Trigger(context.Background(), "exam-1")
	}
	if got := sub.callCount(); got != 1 {
		t.Errorf("submit calls = %d, want 1", got)
	}
	if !sub.calls[0].AutoSubmit || sub.calls[0].ExamID != "exam-1" {
		t.Errorf("submit request = %+v", sub.calls[0])
	}
}

func TestTriggerFallsBackToNavigation(t *testing.T) {
	nav := &recordingNavigator{}
	c := &AutoSubmitCoordinator{Navigator: nav}

	c.Trigger(context.Background(), "exam-9")
	c.Trigger(context.Background(), "exam-9")

	if nav.calls != 1 {
		t.Fatalf("navigate calls = %d, want 1", nav.calls)
	}
	if nav.examID != "exam-9" || !nav.auto {
		t.Errorf("navigate = (%s, %v), want (exam-9, true)", nav.examID, nav.auto)
	}
}

func TestTriggerRetriesOnceThenSurfaces(t *testing.T) {
	sub := &fakeSubmitter{errs: []error{errors.New("network"), errors.New("network")}}
	notifier := &recordingNotifier{}
	c := &AutoSubmitCoordinator{Submitter: sub, Notifier: notifier}

	c.Trigger(context.Background(), "exam-1")

	if got := sub.callCount(); got != 2 {
		t.Errorf("submit attempts = %d, want 2 (original + one retry)", got)
	}
	found := false
	for _, msg := range notifier.messages {
		if msg == "Automatic submission failed. Please contact support." {
			found = true
		}
	}
	if !found {
		t.Errorf("failure not surfaced to user; messages = %v", notifier.messages)
	}
}

func TestTriggerRecoversOnRetry(t *testing.T) {
	sub := &fakeSubmitter{errs: []error{errors.New("blip")}}
	notifier := &recordingNotifier{}
	c := &AutoSubmitCoordinator{Submitter: sub, Notifier: notifier}

	c.Trigger(context.Background(), "exam-1")

	if got := sub.callCount(); got != 2 {
		t.Errorf("submit attempts = %d, want 2", got)
	}
	for _, msg := range notifier.messages {
		if msg == "Automatic submission failed. Please contact support." {
			t.Error("success after retry must not surface a failure")
		}
	}
}
