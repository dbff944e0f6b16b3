package licensing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "licensing-service-token"

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(testService(t), testToken, zap.NewNop()).Register(mux)
	return mux
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/usage/tenant-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/usage/tenant-1", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordUsageEndpoint(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/usage/record", testToken, map[string]any{
		"tenant_id":   "tenant-1",
		"agent_type":  "bizdev",
		"tokens_used": 250,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	current := resp["current_usage"].(map[string]any)
	// requests_count defaults to 1 when omitted.
	assert.Equal(t, float64(1), current["total_requests"])
	assert.Equal(t, float64(250), current["total_tokens"])
	assert.Equal(t, false, resp["overage"])
}

func TestRecordUsageEndpointBadJSON(t *testing.T) {
	h := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/usage/record", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUsageEndpointEmptyTenant(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/usage/unknown", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var usage Usage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Zero(t, usage.TotalRequests)
	assert.Zero(t, usage.TotalTokens)
}

func TestLicenseEndpoints(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/licenses", testToken, map[string]any{
		"tenant_id": "tenant-1",
		"plan":      "pro",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/licenses/tenant-1", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TenantID string  `json:"tenant_id"`
		License  License `json:"license"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, PlanPro, resp.License.Plan)
	assert.Equal(t, int64(1_000), resp.License.RequestLimit)
}

func TestLicenseEndpointUnknownPlan(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/licenses", testToken, map[string]any{
		"tenant_id": "tenant-1",
		"plan":      "platinum",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLicenseEndpointNotFound(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/licenses/ghost", testToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillingEndpoint(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/usage/record", testToken, map[string]any{
		"tenant_id":      "tenant-1",
		"agent_type":     "coding",
		"requests_count": 150,
		"tokens_used":    12_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/billing/tenant-1", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var billing Billing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &billing))
	assert.Equal(t, PlanBasic, billing.Plan)
	assert.Equal(t, 31.5, billing.TotalCost)
}
