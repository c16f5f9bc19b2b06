package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/octopus-network/relay-client/gateway"
	"github.com/octopus-network/relay-client/logger"
)

// RegistryEndpoints registers the REST view of the "api" under the router.
func RegistryEndpoints(api *RelayAPI, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/overview", getOverview(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/appchains", getAppchains(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/appchains/{id:[0-9]+}", getAppchain(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/appchains/{id:[0-9]+}/validators", getValidators(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/appchains/{id:[0-9]+}/validator-sets/{epoch:[0-9]+}", getValidatorSet(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/block-height", getBlockHeight(api, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/registry/refresh", postRefresh(api, log)).Methods(http.MethodPost, http.MethodOptions)
	}
}

func getOverview(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov, err := api.GetOverview(r.Context())
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, ov, http.StatusOK, log)
	}
}

func getAppchains(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "true" {
			if err := api.registry.Refresh(r.Context()); err != nil {
				writeError(w, err, errorStatus(err), log)
				return
			}
		}
		appchains, err := api.GetAppchains(r.Context())
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, appchains, http.StatusOK, log)
	}
}

func getAppchain(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err, http.StatusBadRequest, log)
			return
		}
		d, err := api.GetAppchain(r.Context(), id)
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, d, http.StatusOK, log)
	}
}

func getValidators(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err, http.StatusBadRequest, log)
			return
		}
		vals, err := api.GetValidators(r.Context(), id)
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, vals, http.StatusOK, log)
	}
}

func getValidatorSet(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id, err := parseID(vars["id"])
		if err != nil {
			writeError(w, err, http.StatusBadRequest, log)
			return
		}
		epoch, err := strconv.ParseUint(vars["epoch"], 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("invalid epoch: %w", err), http.StatusBadRequest, log)
			return
		}
		vs, err := api.GetValidatorSet(r.Context(), id, epoch)
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, vs, http.StatusOK, log)
	}
}

func getBlockHeight(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := api.GetBlockHeight()
		if err != nil {
			writeError(w, err, http.StatusServiceUnavailable, log)
			return
		}
		writeResponse(w, h, http.StatusOK, log)
	}
}

func postRefresh(api *RelayAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := api.Refresh(r.Context())
		if err != nil {
			writeError(w, err, errorStatus(err), log)
			return
		}
		writeResponse(w, struct {
			NumAppchains uint64 `json:"num_appchains"`
		}{n}, http.StatusOK, log)
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid appchain id: %w", err)
	}
	return id, nil
}

// errorStatus maps the gateway error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrContractRejection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResponse(w http.ResponseWriter, response any, statusCode int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Warn("failed to write JSON response", logger.Error(err))
	}
}

func writeError(w http.ResponseWriter, e error, statusCode int, log *slog.Logger) {
	writeResponse(w, struct {
		Error string `json:"error"`
	}{e.Error()}, statusCode, log)
}
