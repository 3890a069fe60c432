package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
)

const redacted = "***"

// ConfigAPI serves the running configuration with credentials masked and
// checks candidate configurations without applying them.
type ConfigAPI struct {
	current atomic.Pointer[Config]
	router  *mux.Router
}

func NewConfigAPI(cfg *Config) *ConfigAPI {
	api := &ConfigAPI{router: mux.NewRouter()}
	api.current.Store(cfg)
	sub := api.router.PathPrefix("/configure").Subrouter()
	sub.HandleFunc("", api.show).Methods(http.MethodGet)
	sub.HandleFunc("/", api.show).Methods(http.MethodGet)
	sub.HandleFunc("/validate", api.validate).Methods(http.MethodPost)
	return api
}

func (api *ConfigAPI) Router() *mux.Router {
	return api.router
}

// Replace swaps the configuration shown by the API.
func (api *ConfigAPI) Replace(cfg *Config) {
	api.current.Store(cfg)
}

func (api *ConfigAPI) show(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, api.current.Load().Redacted())
}

func (api *ConfigAPI) validate(w http.ResponseWriter, r *http.Request) {
	var candidate Config
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("invalid config payload: %v", err)})
		return
	}
	if err := candidate.Validate(); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("invalid configuration: %v", err)})
		return
	}
	respond(w, http.StatusOK, map[string]any{"valid": true})
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Redacted returns a deep copy with every credential masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Analysis.Policies = cloneMap(c.Analysis.Policies)
	out.Billing.Plans = cloneMap(c.Billing.Plans)
	out.Storage.AllowedExtensions = append([]string(nil), c.Storage.AllowedExtensions...)
	for _, s := range []*string{
		&out.LLM.APIKey,
		&out.Storage.MinIO.AccessKey,
		&out.Storage.MinIO.SecretKey,
		&out.Billing.WebhookSecret,
		&out.Ledger.DSN,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	return &out
}

func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
