package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/config"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/web/ws"
)

// fakeWorkerServer speaks the remote worker wire protocol. Submitted
// jobs report one running observation, then complete.
type fakeWorkerServer struct {
	mu      sync.Mutex
	busy    bool
	holder  string
	polls   map[string]int
	nextTok int
}

func newFakeWorkerServer() *fakeWorkerServer {
	return &fakeWorkerServer{polls: make(map[string]int)}
}

func (f *fakeWorkerServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "9.9.9"})
	})

	mux.HandleFunc("GET /api/v1/lock", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		status := "idle"
		if f.busy {
			status = "busy"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status, "current": f.holder})
	})

	mux.HandleFunc("GET /api/v1/targets", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "ct-101", "name": "nextcloud"},
			{"id": "ct-102", "name": "gitea"},
		})
	})

	mux.HandleFunc("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.busy {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "busy"})
			return
		}

		f.nextTok++
		token := fmt.Sprintf("tok-%d", f.nextTok)
		f.polls[token] = 0
		json.NewEncoder(w).Encode(map[string]string{"progressToken": token})
	})

	mux.HandleFunc("GET /api/v1/jobs/{token}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		token := r.PathValue("token")
		f.polls[token]++
		if f.polls[token] == 1 {
			json.NewEncoder(w).Encode(map[string]any{"status": "running", "progress": 50, "step": "archiving"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "complete", "progress": 100})
	})

	return mux
}

func newTestAPI(t *testing.T) (*httptest.Server, *fakeWorkerServer, *store.Store) {
	t.Helper()

	fw := newFakeWorkerServer()
	workerSrv := httptest.NewServer(fw.handler())
	t.Cleanup(workerSrv.Close)

	cfg := &config.AppConfig{
		Worker: config.WorkerConfig{URL: workerSrv.URL},
		Engine: config.EngineConfig{PollIntervalMs: 5, ConflictBackoffS: 1, JobTimeoutMinutes: 1},
	}

	storeInstance := store.NewStore(context.Background(), cfg, orchestrator.NopPresenter)

	apiSrv := httptest.NewServer(NewRouter(storeInstance, ws.NewHub(), "test"))
	t.Cleanup(apiSrv.Close)

	return apiSrv, fw, storeInstance
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type batchEnvelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Data    types.BatchView `json:"data"`
}

func TestBatchLifecycleOverAPI(t *testing.T) {
	apiSrv, _, _ := newTestAPI(t)

	var created batchEnvelope
	code := postJSON(t, apiSrv.URL+"/api2/json/batches", map[string]any{
		"kind": "backup",
		"targets": []map[string]string{
			{"id": "ct-101", "display_name": "nextcloud"},
			{"id": "ct-102"},
		},
	}, &created)
	require.Equal(t, http.StatusOK, code)
	require.True(t, created.Success)
	require.Len(t, created.Data.Jobs, 2)
	batchID := created.Data.ID

	var final batchEnvelope
	require.Eventually(t, func() bool {
		var view batchEnvelope
		if getJSON(t, apiSrv.URL+"/api2/json/batches/"+batchID, &view) != http.StatusOK {
			return false
		}
		final = view
		return view.Data.State.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, types.BatchCompleted, final.Data.State)
	assert.Equal(t, 2, final.Data.Completed)
	assert.Equal(t, 0, final.Data.Failed)
	for _, job := range final.Data.Jobs {
		assert.Equal(t, types.JobComplete, job.State)
		assert.Equal(t, 100, job.Percent)
	}

	// A terminal batch is dismissed by DELETE and disappears.
	req, err := http.NewRequest(http.MethodDelete, apiSrv.URL+"/api2/json/batches/"+batchID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, getJSON(t, apiSrv.URL+"/api2/json/batches/"+batchID, nil))
}

func TestStartBatchValidation(t *testing.T) {
	apiSrv, _, _ := newTestAPI(t)

	code := postJSON(t, apiSrv.URL+"/api2/json/batches", map[string]any{
		"kind":    "backup",
		"targets": []map[string]string{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = postJSON(t, apiSrv.URL+"/api2/json/batches", map[string]any{
		"kind":    "defrag",
		"targets": []map[string]string{{"id": "ct-101"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetUnknownBatch(t *testing.T) {
	apiSrv, _, _ := newTestAPI(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, apiSrv.URL+"/api2/json/batches/nope", nil))
}

func TestRunSingleBusyWorker(t *testing.T) {
	apiSrv, fw, _ := newTestAPI(t)

	fw.mu.Lock()
	fw.busy = true
	fw.holder = "web-frontend"
	fw.mu.Unlock()

	code := postJSON(t, apiSrv.URL+"/api2/json/jobs/run", map[string]any{
		"kind":   "backup",
		"target": map[string]string{"id": "ct-101"},
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestLockEndpoint(t *testing.T) {
	apiSrv, fw, _ := newTestAPI(t)

	var lock struct {
		Data types.LockStatus `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, apiSrv.URL+"/api2/json/plus/lock", &lock))
	assert.False(t, lock.Data.Busy)

	fw.mu.Lock()
	fw.busy = true
	fw.holder = "ct-101"
	fw.mu.Unlock()

	require.Equal(t, http.StatusOK, getJSON(t, apiSrv.URL+"/api2/json/plus/lock", &lock))
	assert.True(t, lock.Data.Busy)
	assert.Equal(t, "ct-101", lock.Data.Holder)
}

func TestTargetsEndpoint(t *testing.T) {
	apiSrv, _, _ := newTestAPI(t)

	var resp struct {
		Data []types.Target `json:"data"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, apiSrv.URL+"/api2/json/targets", &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "nextcloud", resp.Data[0].DisplayName)
}
