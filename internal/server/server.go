// Package server exposes the admin HTTP API: process status, the
// bank ledger, the destination ban list and the event trail. It is
// an operator surface, not a player surface; players only ever talk
// to the agents through the feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardroom/internal/agents"
	"cardroom/internal/banlist"
	"cardroom/internal/events"
	"cardroom/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Store    *store.Store
	Bans     *banlist.List
	Events   *events.Writer
	Stats    map[string]*agents.Stats
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"player has no ledger row"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Cardroom admin API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Store))
	hcfg := huma.DefaultConfig("Cardroom Admin API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Stats)
	registerBank(group, cfg.Store)
	registerBans(group, cfg.Bans)
	registerEvents(group, cfg.Events)
	registerAPIKeys(group, cfg.Store)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, stats map[string]*agents.Stats) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Per-agent counters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		resp := StatusResponse{Agents: map[string]agents.Snapshot{}}
		for name, s := range stats {
			resp.Agents[name] = s.Snapshot()
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerBank(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/bank/accounts/{player}",
		Summary:     "Player balance",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Player string `path:"player"`
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		balance := st.Balance(ctx, input.Player)
		if balance == store.NoBalance {
			return nil, newAPIError(http.StatusNotFound, "not_found", "player has no ledger row", map[string]any{"player": input.Player})
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: AccountResponse{Player: input.Player, Balance: balance}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-balance",
		Method:      http.MethodPut,
		Path:        "/bank/accounts/{player}",
		Summary:     "Set player balance",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Player string `path:"player"`
		Body   SetBalanceRequest
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		if input.Body.Balance < 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "balance must not be negative", nil)
		}
		if err := st.SetBalance(ctx, input.Player, input.Body.Balance); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: AccountResponse{Player: input.Player, Balance: input.Body.Balance}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "leaders",
		Method:      http.MethodGet,
		Path:        "/bank/leaders",
		Summary:     "Richest players",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"10"`
	}) (*struct {
		Body LeadersResponse `json:"body"`
	}, error) {
		accounts, err := st.Leaders(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LeadersResponse `json:"body"`
		}{Body: LeadersResponse{Items: mapAccounts(accounts)}}, nil
	})
}

func registerBans(api huma.API, bans *banlist.List) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bans",
		Method:      http.MethodGet,
		Path:        "/bans",
		Summary:     "Banned destinations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BansResponse `json:"body"`
	}, error) {
		return &struct {
			Body BansResponse `json:"body"`
		}{Body: BansResponse{Items: bans.All()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-ban",
		Method:        http.MethodPost,
		Path:          "/bans",
		Summary:       "Ban a destination",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BanRequest
	}) (*struct {
		Body BansResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Destination) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "destination is required", nil)
		}
		if err := bans.Add(input.Body.Destination); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BansResponse `json:"body"`
		}{Body: BansResponse{Items: bans.All()}}, nil
	})

	// DELETE is the manual circuit-breaker reset: the poller starts
	// writing to the destination again on its next cycle.
	huma.Register(api, huma.Operation{
		OperationID: "remove-ban",
		Method:      http.MethodDelete,
		Path:        "/bans/{destination}",
		Summary:     "Lift a destination ban",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Destination string `path:"destination"`
	}) (*struct {
		Body BansResponse `json:"body"`
	}, error) {
		if !bans.Contains(input.Destination) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "destination is not banned", map[string]any{"destination": input.Destination})
		}
		if err := bans.Remove(input.Destination); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BansResponse `json:"body"`
		}{Body: BansResponse{Items: bans.All()}}, nil
	})
}

func registerEvents(api huma.API, w *events.Writer) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type  string `query:"type"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		items, err := w.List(ctx, input.Type, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, st *store.Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest
	}) (*struct {
		Body CreatedAPIKeyResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		id := uuid.NewString()
		secret := uuid.NewString()
		key := store.APIKey{ID: id, Name: input.Body.Name, KeyHash: store.HashAPIKey(secret)}
		if err := st.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		// The plaintext key is only ever returned here.
		return &struct {
			Body CreatedAPIKeyResponse `json:"body"`
		}{Body: CreatedAPIKeyResponse{ID: id, Name: input.Body.Name, Key: secret}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body APIKeysResponse `json:"body"`
	}, error) {
		keys, err := st.ListAPIKeys(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := APIKeysResponse{Items: []APIKeyResponse{}}
		for _, key := range keys {
			resp.Items = append(resp.Items, apiKeyResponse(key))
		}
		return &struct {
			Body APIKeysResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Revoke API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := st.RevokeAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Cardroom Admin API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
