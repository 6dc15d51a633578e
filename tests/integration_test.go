package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
//   Client → HTTP API → Auth → Ingest → Ledger → Stats → Response
//
// Runs against an already running service and is skipped unless BASE_URL
// is set, e.g. BASE_URL=http://localhost:8080 go test ./tests/...
//
//   BASE_URL    service root
//   TENANT_KEY  default tenant-key-123
////////////////////////////////////////////////////////////////////////////////

var client = &http.Client{Timeout: 5 * time.Second}

func baseURL(t *testing.T) string {
	t.Helper()
	v := os.Getenv("BASE_URL")
	if v == "" {
		t.Skip("BASE_URL not set; skipping integration tests")
	}
	return v
}

func tenantKey() string {
	if v := os.Getenv("TENANT_KEY"); v != "" {
		return v
	}
	return "tenant-key-123"
}

// unique generates a unique string so tests never collide with previous runs.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// waitReady polls /ready until the ledger is reachable.
func waitReady(t *testing.T) string {
	t.Helper()
	root := baseURL(t)

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(root + "/ready")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return root
			}
		}
		time.Sleep(300 * time.Millisecond)
	}

	t.Fatalf("service not ready after 30s")
	return ""
}

func do(t *testing.T, method, u, apiKey string, body io.Reader) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, u, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

type tally struct {
	Accepted int `json:"accepted"`
	Deduped  int `json:"deduped"`
	Updated  int `json:"updated"`
	Rejected int `json:"rejected"`
}

func postBatch(t *testing.T, root, apiKey string, events []map[string]any) (int, tally) {
	t.Helper()
	b, err := json.Marshal(events)
	require.NoError(t, err)

	status, out := do(t, http.MethodPost, root+"/events/batch", apiKey, bytes.NewReader(b))
	var tl tally
	if status == http.StatusOK {
		require.NoError(t, json.Unmarshal(out, &tl))
	}
	return status, tl
}

func event(id, machine string, at time.Time, defects int) map[string]any {
	return map[string]any{
		"eventId":     id,
		"eventTime":   at.UTC().Format(time.RFC3339Nano),
		"machineId":   machine,
		"durationMs":  1200,
		"defectCount": defects,
	}
}

func TestHealth_ReturnsOK(t *testing.T) {
	root := baseURL(t)
	status, _ := do(t, http.MethodGet, root+"/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestBatch_UnauthorizedWithoutAPIKey(t *testing.T) {
	root := waitReady(t)
	status, _ := postBatch(t, root, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBatch_DedupeAndUpdate(t *testing.T) {
	root := waitReady(t)
	machine := unique("M")
	id := unique("E")
	at := time.Now().UTC().Add(-time.Minute)

	status, first := postBatch(t, root, tenantKey(), []map[string]any{
		event(id, machine, at, 1),
		event(id, machine, at, 1),
		event(unique("E"), machine, at.Add(time.Hour), 0),
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tally{Accepted: 1, Deduped: 1, Rejected: 1}, first)

	status, second := postBatch(t, root, tenantKey(), []map[string]any{event(id, machine, at, 3)})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, second.Updated)

	q := url.Values{
		"machineId": {machine},
		"start":     {at.Add(-time.Hour).Format(time.RFC3339)},
		"end":       {at.Add(time.Hour).Format(time.RFC3339)},
	}
	status, out := do(t, http.MethodGet, root+"/events/stats?"+q.Encode(), tenantKey(), nil)
	require.Equal(t, http.StatusOK, status)

	var report struct {
		EventsCount  int64 `json:"eventsCount"`
		DefectsCount int64 `json:"defectsCount"`
	}
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, int64(1), report.EventsCount)
	assert.Equal(t, int64(3), report.DefectsCount)
}

func TestTopDefectLines_ReturnsJSON(t *testing.T) {
	root := waitReady(t)
	now := time.Now().UTC()
	q := url.Values{
		"from":  {now.Add(-time.Hour).Format(time.RFC3339)},
		"to":    {now.Format(time.RFC3339)},
		"limit": {"5"},
	}
	status, out := do(t, http.MethodGet, root+"/events/stats/top-defect-lines?"+q.Encode(), tenantKey(), nil)
	require.Equal(t, http.StatusOK, status)

	var lines []map[string]any
	require.NoError(t, json.Unmarshal(out, &lines))
	assert.LessOrEqual(t, len(lines), 5)
}
