package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/persistorai/tenantseal/internal/api"
	"github.com/persistorai/tenantseal/internal/models"
)

func newKeyRouter(svc *mockKeyService) http.Handler {
	h := api.NewKeyHandler(svc, testLogger())

	r := newTestRouter()
	r.GET("/keys/status", h.Status)
	r.POST("/keys/reencrypt", h.Reencrypt)

	return r
}

func TestKeyStatus(t *testing.T) {
	svc := &mockKeyService{
		statusFn: func(context.Context, string) (*models.RotationStatus, error) {
			return &models.RotationStatus{ActiveVersion: 2, Counts: map[int]int{1: 3, 2: 5}, Total: 8, Stale: 3}, nil
		},
	}

	w := doRequest(newKeyRouter(svc), http.MethodGet, "/keys/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["active_version"] != float64(2) || body["stale"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}

	counts, _ := body["counts"].(map[string]any)
	if counts["1"] != float64(3) {
		t.Fatalf("counts = %v", body["counts"])
	}
}

func TestKeyReencrypt(t *testing.T) {
	svc := &mockKeyService{
		reencryptFn: func(_ context.Context, tenantID string) (*models.ReencryptResult, error) {
			if tenantID != testTenantID {
				t.Errorf("tenant = %q", tenantID)
			}
			return &models.ReencryptResult{ActiveVersion: 2, Migrated: 3, Failed: 1, Errors: []string{"x: decrypt failed"}}, nil
		},
	}

	w := doRequest(newKeyRouter(svc), http.MethodPost, "/keys/reencrypt", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["migrated"] != float64(3) || body["failed"] != float64(1) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestKeyReencryptCancelled(t *testing.T) {
	svc := &mockKeyService{
		reencryptFn: func(context.Context, string) (*models.ReencryptResult, error) {
			return &models.ReencryptResult{Migrated: 1}, context.DeadlineExceeded
		},
	}

	if w := doRequest(newKeyRouter(svc), http.MethodPost, "/keys/reencrypt", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
