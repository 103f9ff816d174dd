package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
)

type fakeProcessor struct {
	state    *domain.ProcessorState
	startErr error
	started  *domain.RunOptions
}

func (f *fakeProcessor) Start(_ context.Context, opts domain.RunOptions) (*domain.ProcessorState, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = &opts
	return f.state, nil
}

func (f *fakeProcessor) ProcessBatch(context.Context) (domain.BatchResult, error) {
	return domain.BatchResult{Success: true, Processed: 2}, nil
}

func (f *fakeProcessor) Pause(context.Context) error  { return nil }
func (f *fakeProcessor) Resume(context.Context) error { return engine.ErrNotPaused }
func (f *fakeProcessor) Stop(context.Context) error   { return nil }

func (f *fakeProcessor) State(context.Context) *domain.ProcessorState {
	if f.state == nil {
		return domain.EmptyState("migration")
	}
	return f.state
}

func testRouter(p *fakeProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewOffloadHandler(map[string]Processor{"migration": p})
	router := gin.New()
	group := router.Group("/api/v1/offload/:workflow")
	group.POST("/start", h.Start)
	group.POST("/batch", h.ProcessBatch)
	group.POST("/pause", h.Pause)
	group.POST("/resume", h.Resume)
	group.GET("/status", h.Status)
	return router
}

func TestStartPassesOptions(t *testing.T) {
	p := &fakeProcessor{state: &domain.ProcessorState{Workflow: "migration", Status: domain.StatusRunning}}
	router := testRouter(p)

	body := `{"batch_size": 10, "remove_local": true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offload/migration/start", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if p.started == nil || p.started.BatchSize != 10 || !p.started.RemoveLocal {
		t.Fatalf("options = %+v", p.started)
	}
}

func TestStartWithoutBodyUsesDefaults(t *testing.T) {
	p := &fakeProcessor{state: &domain.ProcessorState{Workflow: "migration"}}
	router := testRouter(p)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offload/migration/start", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if p.started == nil || p.started.BatchSize != 0 {
		t.Fatalf("options = %+v", p.started)
	}
}

func TestStartConflictWhenAlreadyRunning(t *testing.T) {
	p := &fakeProcessor{startErr: engine.ErrAlreadyRunning}
	router := testRouter(p)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offload/migration/start", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestUnknownWorkflowIs404(t *testing.T) {
	router := testRouter(&fakeProcessor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/offload/nope/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestBatchReturnsResult(t *testing.T) {
	router := testRouter(&fakeProcessor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offload/migration/batch", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result domain.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.Processed != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestResumeConflictOutsidePaused(t *testing.T) {
	router := testRouter(&fakeProcessor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/offload/migration/resume", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestStatusReturnsState(t *testing.T) {
	router := testRouter(&fakeProcessor{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/offload/migration/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var state domain.ProcessorState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status != domain.StatusIdle {
		t.Fatalf("state = %+v", state)
	}
}
