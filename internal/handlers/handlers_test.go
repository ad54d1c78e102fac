package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/platform/apierr"
	"github.com/mentorium/backend/internal/platform/logger"
	"github.com/mentorium/backend/internal/services"
	"github.com/mentorium/backend/internal/types"
)

type fakeIngest struct {
	result    *services.IngestResult
	removeErr error
	removed   *types.Resource
}

func (f *fakeIngest) Ingest(ctx context.Context, desc types.ResourceDescriptor) (*services.IngestResult, error) {
	return f.result, nil
}

func (f *fakeIngest) Remove(ctx context.Context, resourceID string) (*types.Resource, error) {
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	return f.removed, nil
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response decode: %v (%s)", err, w.Body.String())
	}
	return w, env
}

func newResourceRouter(ingest services.IngestService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewResourceHandler(mustLogger(), ingest)
	r.POST("/add_resource", h.Add)
	r.POST("/delete_resource", h.Delete)
	return r
}

func mustLogger() *logger.Logger {
	log, err := logger.New("dev")
	if err != nil {
		panic(err)
	}
	return log
}

func TestDeleteResourceNotFoundIsOK(t *testing.T) {
	r := newResourceRouter(&fakeIngest{
		removeErr: apierr.Newf(http.StatusNotFound, apierr.CodeNotFound, "resource ghost does not exist"),
	})

	w, env := doJSON(t, r, "POST", "/delete_resource", `{"resource_id":"ghost"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	if env["success"] != true {
		t.Fatalf("success: want=true got=%v", env)
	}
	if env["message"] != "nothing to remove" {
		t.Fatalf("message: got=%v", env["message"])
	}
}

func TestDeleteResourceSuccess(t *testing.T) {
	r := newResourceRouter(&fakeIngest{
		removed: &types.Resource{ResourceID: "r1", VectorIDs: []string{"v1", "v2"}},
	})

	w, env := doJSON(t, r, "POST", "/delete_resource", `{"resource_id":"r1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	data := env["data"].(map[string]any)
	if data["vectors_deleted"] != float64(2) {
		t.Fatalf("vectors_deleted: got=%v", data["vectors_deleted"])
	}
}

func TestDeleteResourceRequiresID(t *testing.T) {
	r := newResourceRouter(&fakeIngest{})

	w, env := doJSON(t, r, "POST", "/delete_resource", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", w.Code)
	}
	if env["error"] != apierr.CodeInvalidArgument {
		t.Fatalf("error code: got=%v", env["error"])
	}
}

func TestAddResourceEnvelope(t *testing.T) {
	r := newResourceRouter(&fakeIngest{
		result: &services.IngestResult{ResourceID: "r1", Status: services.StatusIndexed, Chunks: 4},
	})

	w, env := doJSON(t, r, "POST", "/add_resource",
		`{"resource_id":"r1","resource_title":"a.docx","drive_id":"d1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	data := env["data"].(map[string]any)
	if data["status"] != string(services.StatusIndexed) {
		t.Fatalf("status field: got=%v", data["status"])
	}
}

func TestHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler().Check)

	w, env := doJSON(t, r, "GET", "/healthcheck", "")
	if w.Code != http.StatusOK || env["success"] != true {
		t.Fatalf("healthcheck: code=%d env=%v", w.Code, env)
	}
}
