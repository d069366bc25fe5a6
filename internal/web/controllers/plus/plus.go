package plus

import (
	"net/http"

	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/web/controllers"
)

type lockResponse struct {
	Status int              `json:"status"`
	Data   types.LockStatus `json:"data"`
}

type versionResponse struct {
	Status int    `json:"status"`
	Server string `json:"server"`
	Worker string `json:"worker,omitempty"`
}

// LockHandler reports the worker's advisory single-flight lock state
// for the UI. A probe failure reports idle; submission handling is the
// authoritative guard either way.
func LockHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lock, err := storeInstance.Worker().CheckBusy(r.Context())
		if err != nil {
			lock = types.LockStatus{}
		}

		controllers.WriteJSONResponse(w, lockResponse{
			Status: http.StatusOK,
			Data:   lock,
		})
	}
}

// VersionHandler reports the server build and the worker's advertised
// API version.
func VersionHandler(storeInstance *store.Store, serverVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerVersion, err := storeInstance.Worker().Version(r.Context())
		if err != nil {
			workerVersion = ""
		}

		controllers.WriteJSONResponse(w, versionResponse{
			Status: http.StatusOK,
			Server: serverVersion,
			Worker: workerVersion,
		})
	}
}
