package proctor

import (
	"context"
	"log"
	"sync"
)

// SubmitRequest is handed to the exam-submission collaborator when the
// violation threshold forces the attempt closed.
type SubmitRequest struct {
	ExamID     string `json:"exam_id"`
	AutoSubmit bool   `json:"auto_submit"`
}

// Submitter is the exam-submission collaborator.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) error
}

// Navigator is the fallback when no submission hook is wired: send the
// student to the exam page with an auto-submit-on-load flag.
type Navigator interface {
	NavigateToExam(examID string, autoSubmit bool)
}

// AutoSubmitCoordinator bridges threshold-crossing to irreversible exam
// termination. Trigger fires at most once per coordinator.
type AutoSubmitCoordinator struct {
	Submitter Submitter
	Navigator Navigator
	Notifier  Notifier

	once sync.Once
}

// Trigger submits the exam tagged as forced. If the submission hook is
// missing it falls back to navigation; if submission fails it retries
// once, then surfaces the failure to the student. Subsequent calls are
// no-ops.
func (c *AutoSubmitCoordinator) Trigger(ctx context.Context, examID string) {
	c.once.Do(func() {
		if c.Notifier != nil {
			c.Notifier.Notify("Violation limit reached. Your exam is being submitted.", SeverityCritical)
		}

		if c.Submitter == nil {
			if c.Navigator != nil {
				c.Navigator.NavigateToExam(examID, true)
			}
			return
		}

		req := SubmitRequest{ExamID: examID, AutoSubmit: true}
		err := c.Submitter.Submit(ctx, req)
		if err != nil {
			log.Printf("proctor: auto-submit failed, retrying once: %v", err)
			err = c.Submitter.Submit(ctx, req)
		}
		if err != nil {
			log.Printf("proctor: auto-submit retry failed: %v", err)
			if c.Notifier != nil {
				c.Notifier.Notify("Automatic submission failed. Please contact support.", SeverityCritical)
			}
		}
	})
}
