package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestflow-xyz/go-vestflow/access"
	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/token"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

const (
	adminKey  = "test-admin-key"
	holderKey = "test-holder-key"

	start       = uint64(1_700_000_000)
	cliffTime   = start + 100
	duration    = uint64(1_000)
	slicePeriod = uint64(100)
	secondTime  = start + 300
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	ledger := token.NewMemoryLedger()
	require.NoError(t, ledger.Mint("vesting:test", uint256.NewInt(10_000)))
	eng := engine.New(ledger, "vesting:test", "0xowner")

	return New(eng,
		WithAPIKeys(map[string]access.Caller{
			adminKey:  access.NewCaller("0xowner", access.RoleAdmin, access.RoleGranter),
			holderKey: access.NewCaller("0xholder"),
		}),
		WithClock(func() uint64 { return start }),
	)
}

func doJSON(t *testing.T, s *Server, method, path, key string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSchedule(t *testing.T, s *Server) string {
	t.Helper()

	resp := doJSON(t, s, http.MethodPost, "/api/v1/schedules", adminKey, createRequest{
		Beneficiary:          "0xholder",
		Start:                start,
		Cliff:                100,
		Duration:             duration,
		SlicePeriod:          slicePeriod,
		Revocable:            true,
		Amount:               "1000",
		FirstReleasePercent:  5,
		SecondReleasePercent: 10,
		SecondReleaseTime:    secondTime,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[idResponse](t, resp).ID
}

func TestCreateAndFetchSchedule(t *testing.T) {
	s := newTestServer(t)
	id := createSchedule(t, s)

	resp := doJSON(t, s, http.MethodGet, "/api/v1/schedules/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sched := decode[scheduleJSON](t, resp)
	assert.Equal(t, "0xholder", sched.Beneficiary)
	assert.Equal(t, "1000", sched.AmountTotal)
	assert.Equal(t, cliffTime, sched.Cliff)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/schedules/count", "", nil)
	assert.Equal(t, 1, decode[countResponse](t, resp).Count)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/holders/0xholder/schedules/count", "", nil)
	assert.Equal(t, 1, decode[countResponse](t, resp).Count)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/holders/0xholder/schedules/0/id", "", nil)
	assert.Equal(t, id, decode[idResponse](t, resp).ID)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/holders/0xholder/schedules/last", "", nil)
	assert.Equal(t, id, decode[scheduleJSON](t, resp).ID)
}

func TestGetScheduleNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/v1/schedules/vs:missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReleasableHonorsPinnedTime(t *testing.T) {
	s := newTestServer(t)
	id := createSchedule(t, s)

	resp := doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/schedules/%s/releasable?now=%d", id, start+50), "", nil)
	assert.Equal(t, "0", decode[amountResponse](t, resp).Amount)

	resp = doJSON(t, s, http.MethodGet,
		fmt.Sprintf("/api/v1/schedules/%s/releasable?now=%d", id, cliffTime), "", nil)
	assert.Equal(t, "50", decode[amountResponse](t, resp).Amount)
}

func TestReleaseFlow(t *testing.T) {
	s := newTestServer(t)
	id := createSchedule(t, s)

	path := fmt.Sprintf("/api/v1/schedules/%s/release?now=%d", id, cliffTime)

	// No api key.
	resp := doJSON(t, s, http.MethodPost, path, "", releaseRequest{Amount: "50"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// More than the current stage holds.
	resp = doJSON(t, s, http.MethodPost, path, holderKey, releaseRequest{Amount: "51"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, path, holderKey, releaseRequest{Amount: "50"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/schedules/"+id, "", nil)
	sched := decode[scheduleJSON](t, resp)
	assert.Equal(t, "50", sched.Released)
	assert.True(t, sched.Tier1Released)
}

func TestCreateRequiresGranter(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/v1/schedules", holderKey, createRequest{
		Beneficiary:       "0xholder",
		Start:             start,
		Duration:          duration,
		SlicePeriod:       slicePeriod,
		Amount:            "100",
		SecondReleaseTime: start,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	// Unparseable amount.
	resp := doJSON(t, s, http.MethodPost, "/api/v1/schedules", adminKey, createRequest{
		Beneficiary: "0xholder",
		Amount:      "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Invalid schedule parameters.
	resp = doJSON(t, s, http.MethodPost, "/api/v1/schedules", adminKey, createRequest{
		Beneficiary:       "0xholder",
		Start:             start,
		Duration:          0,
		SlicePeriod:       slicePeriod,
		Amount:            "100",
		SecondReleaseTime: start,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Principal exceeding free contract balance.
	resp = doJSON(t, s, http.MethodPost, "/api/v1/schedules", adminKey, createRequest{
		Beneficiary:       "0xholder",
		Start:             start,
		Duration:          duration,
		SlicePeriod:       slicePeriod,
		Amount:            "999999",
		SecondReleaseTime: start,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRevokeFlow(t *testing.T) {
	s := newTestServer(t)
	id := createSchedule(t, s)

	path := fmt.Sprintf("/api/v1/schedules/%s/revoke?now=%d", id, cliffTime)

	resp := doJSON(t, s, http.MethodPost, path, holderKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, path, adminKey, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second revoke conflicts.
	resp = doJSON(t, s, http.MethodPost, path, adminKey, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unvested principal lands in the pool.
	resp = doJSON(t, s, http.MethodGet, "/api/v1/pool/withdrawable", "", nil)
	assert.Equal(t, "950", decode[amountResponse](t, resp).Amount)
}

func TestPoolEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/api/v1/pool/release-locked", adminKey,
		releaseRequest{Amount: "600"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/pool/withdrawable", "", nil)
	assert.Equal(t, "600", decode[amountResponse](t, resp).Amount)

	resp = doJSON(t, s, http.MethodPost, "/api/v1/pool/lock", adminKey, lockRequest{
		Start:       start,
		Cliff:       100,
		Duration:    duration,
		SlicePeriod: slicePeriod,
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Holder keys cannot touch the pool.
	resp = doJSON(t, s, http.MethodPost, "/api/v1/pool/withdraw", holderKey,
		withdrawRequest{Amount: "600", To: "0xtreasury"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, "/api/v1/pool/withdraw", adminKey,
		withdrawRequest{Amount: "600", To: "0xtreasury"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/v1/pool/withdrawable", "", nil)
	assert.Equal(t, "0", decode[amountResponse](t, resp).Amount)
}

func TestUnknownAPIKey(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/v1/pool/release-locked", "wrong-key",
		releaseRequest{Amount: "1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "unknown api key")
}

func TestErrorBodyIsJSON(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/v1/schedules/vs:missing", "", nil)
	defer resp.Body.Close()

	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Contains(t, e.Error, vesting.ErrNotFound.Error())
}
