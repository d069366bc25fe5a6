package targets

import (
	"net/http"

	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/web/controllers"
)

type targetsResponse struct {
	Status int            `json:"status"`
	Data   []types.Target `json:"data"`
}

// ListHandler proxies the worker's resource inventory for the UI.
func ListHandler(storeInstance *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targets, err := storeInstance.Worker().ListTargets(r.Context())
		if err != nil {
			controllers.WriteErrorResponse(w, err)
			return
		}

		controllers.WriteJSONResponse(w, targetsResponse{
			Status: http.StatusOK,
			Data:   targets,
		})
	}
}
