package batches

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/web/controllers"
)

func parseKind(raw string) (types.OperationKind, error) {
	switch raw {
	case "", string(types.KindBackup):
		return types.KindBackup, nil
	case string(types.KindRestore):
		return types.KindRestore, nil
	}
	return "", fmt.Errorf("unknown operation kind %q", raw)
}

// StartHandler creates and starts a batch from an ordered target list.
func StartHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		kind, err := parseKind(req.Kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		targets := make([]types.Target, 0, len(req.Targets))
		snapshots := make(map[string]string)
		for _, t := range req.Targets {
			name := t.DisplayName
			if name == "" {
				name = t.ID
			}
			targets = append(targets, types.Target{ID: t.ID, DisplayName: name})
			if t.SnapshotID != "" {
				snapshots[t.ID] = t.SnapshotID
			}
		}

		batch, err := storeInstance.StartBatch(kind, targets, snapshots)
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		controllers.WriteJSONResponse(w, startBatchResponse{
			Status:  http.StatusOK,
			Success: true,
			Data:    batch.Snapshot(),
		})
	}
}

// ListHandler returns snapshots of all registered batches.
func ListHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controllers.WriteJSONResponse(w, batchListResponse{
			Status: http.StatusOK,
			Data:   storeInstance.ListBatches(),
		})
	}
}

// GetHandler returns one batch snapshot.
func GetHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, err := storeInstance.GetBatch(r.PathValue("batch"))
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		controllers.WriteJSONResponse(w, startBatchResponse{
			Status:  http.StatusOK,
			Success: true,
			Data:    batch.Snapshot(),
		})
	}
}

// DeleteHandler cancels a running batch, or dismisses a terminal one.
func DeleteHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("batch")

		batch, err := storeInstance.GetBatch(id)
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		if batch.Snapshot().State.IsTerminal() {
			err = storeInstance.DismissBatch(id)
		} else {
			err = storeInstance.CancelBatch(id)
		}
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		controllers.WriteJSONResponse(w, map[string]any{
			"status":  http.StatusOK,
			"success": true,
		})
	}
}

// RunSingleHandler starts one ad-hoc operation. Unlike the batch path
// it answers an occupied worker with an immediate busy error.
func RunSingleHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runSingleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		kind, err := parseKind(req.Kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		name := req.Target.DisplayName
		if name == "" {
			name = req.Target.ID
		}

		snapshotID := req.SnapshotID
		if snapshotID == "" {
			snapshotID = req.Target.SnapshotID
		}

		batch, err := storeInstance.StartSingle(types.Target{ID: req.Target.ID, DisplayName: name}, kind, snapshotID)
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		controllers.WriteJSONResponse(w, startBatchResponse{
			Status:  http.StatusOK,
			Success: true,
			Data:    batch.Snapshot(),
		})
	}
}
