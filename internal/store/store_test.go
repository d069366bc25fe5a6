package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store/config"
	"github.com/podvault/podvault/internal/store/types"
)

// countingWorker is a worker API stub that completes every job on the
// first poll and counts submissions.
func countingWorker(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var submits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"progressToken": "tok-1"})
	})
	mux.HandleFunc("GET /api/v1/jobs/{token}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "complete", "progress": 100})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &submits
}

func fastEngineConfig(workerURL string) *config.AppConfig {
	return &config.AppConfig{
		Worker: config.WorkerConfig{URL: workerURL},
		Engine: config.EngineConfig{PollIntervalMs: 5, ConflictBackoffS: 1, JobTimeoutMinutes: 1},
	}
}

func TestApplyConfigReachesTheEngine(t *testing.T) {
	oldSrv, oldSubmits := countingWorker(t)
	newSrv, newSubmits := countingWorker(t)

	s := NewStore(context.Background(), fastEngineConfig(oldSrv.URL), orchestrator.NopPresenter)

	before := s.Worker()
	s.ApplyConfig(fastEngineConfig(newSrv.URL))
	require.NotSame(t, before, s.Worker())

	// A batch started after the reload submits through the new client,
	// not the one the runner was built with.
	batch, err := s.StartBatch(types.KindBackup, []types.Target{{ID: "ct-101", DisplayName: "ct-101"}}, nil)
	require.NoError(t, err)
	s.Runner.Wait()

	assert.Equal(t, types.BatchCompleted, batch.Snapshot().State)
	assert.Equal(t, int32(0), oldSubmits.Load())
	assert.Equal(t, int32(1), newSubmits.Load())
}

func TestApplyConfigUpdatesAppConfig(t *testing.T) {
	srv, _ := countingWorker(t)
	s := NewStore(context.Background(), fastEngineConfig(srv.URL), orchestrator.NopPresenter)

	reloaded := fastEngineConfig(srv.URL)
	reloaded.Worker.Token = "rotated"
	reloaded.Engine.PollIntervalMs = 50
	s.ApplyConfig(reloaded)

	got := s.GetAppConfig()
	assert.Equal(t, "rotated", got.Worker.Token)
	assert.Equal(t, 50, got.Engine.PollIntervalMs)
}
