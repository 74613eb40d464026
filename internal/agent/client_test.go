package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/zaqqye/proctor_backend/internal/proctor"
)

type captured struct {
	mu     sync.Mutex
	reqs   []*http.Request
	bodies []map[string]any
}

func (c *captured) add(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	c.reqs = append(c.reqs, r)
	c.bodies = append(c.bodies, body)
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

func testClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "test-token")
	c.HTTP = srv.Client()
	c.RetryDelay = time.Millisecond
	return c
}

func TestReportSendsAuthorizedRequest(t *testing.T) {
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.add(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(srv)
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	err := c.Report(context.Background(), proctor.Report{
		ExamID:    "exam-1",
		Type:      proctor.TypeTabSwitch,
		Timestamp: ts,
		Count:     2,
		Detail:    "hidden for 4s",
	})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if cap.count() != 1 {
		t.Fatalf("requests = %d, want 1", cap.count())
	}

	r := cap.reqs[0]
	if r.URL.Path != "/api/v1/violations/log" {
		t.Errorf("path = %s", r.URL.Path)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("authorization = %q", got)
	}
	body := cap.bodies[0]
	if body["exam_id"] != "exam-1" || body["violation_type"] != "tab-switch" {
		t.Errorf("body = %+v", body)
	}
	if body["violation_count"] != float64(2) {
		t.Errorf("violation_count = %v, want 2", body["violation_count"])
	}
	meta, _ := body["metadata"].(map[string]any)
	if meta["details"] != "hidden for 4s" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestReportRetriesOnceThenRecovers(t *testing.T) {
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.add(r)
		if cap.count() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(srv)
	err := c.Report(context.Background(), proctor.Report{ExamID: "e1", Type: proctor.TypeDevTools})
	if err != nil {
		t.Fatalf("Report() after recovery error = %v", err)
	}
	if cap.count() != 2 {
		t.Errorf("requests = %d, want 2", cap.count())
	}
}

func TestReportGivesUpAfterOneRetry(t *testing.T) {
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.add(r)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv)
	err := c.Report(context.Background(), proctor.Report{ExamID: "e1", Type: proctor.TypeDevTools})
	if err == nil {
		t.Fatal("Report() must surface the error after the retry fails")
	}
	if cap.count() != 2 {
		t.Errorf("requests = %d, want exactly 2", cap.count())
	}
}

func TestSubmit(t *testing.T) {
	cap := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.add(r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(srv)
	err := c.Submit(context.Background(), proctor.SubmitRequest{ExamID: "exam-7", AutoSubmit: true})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	r := cap.reqs[0]
	if r.URL.Path != "/api/v1/exams/exam-7/submit" {
		t.Errorf("path = %s", r.URL.Path)
	}
	if cap.bodies[0]["auto_submit"] != true {
		t.Errorf("body = %+v", cap.bodies[0])
	}
}
