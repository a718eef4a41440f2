package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scoutline/internal/domain"
	"scoutline/internal/engine"
	"scoutline/internal/normalize"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"initiative q3-launch: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"due_date\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope every failing route returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Scoutline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
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
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger, cfg.Engine))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Scoutline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerBoard(group, cfg.Engine)
	registerItems(group, cfg.Engine)
	registerSources(group, cfg.Engine)
	registerInitiatives(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// requestLogger logs one line per request and counts it by status.
func requestLogger(logger *zap.Logger, e engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			e.Metrics.Request(r.Method, status)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Error("request", fields...)
				return
			}
			logger.Debug("request", fields...)
		})
	}
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
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field, "reason": ve.Reason})
	}
	if errors.Is(err, domain.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.Schemas == nil {
		oas.Components.Schemas = huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	}
	errSchema := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: errSchema},
				},
			}
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
    <title>Scoutline API Docs</title>
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
  </body>
</html>`, specURL)
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

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Items grouped by time window and initiative",
	}, func(ctx context.Context, input *struct {
		AccountID  string `query:"account_id"`
		ShowClosed string `query:"show_closed" doc:"Override the configured show_closed setting"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		opts := engine.BoardOptions{AccountID: input.AccountID}
		if input.ShowClosed != "" {
			v, err := strconv.ParseBool(input.ShowClosed)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid show_closed", map[string]any{"show_closed": input.ShowClosed})
			}
			opts.ShowClosed = &v
		}
		b, err := e.Board(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: boardResponse(b, now(e))}, nil
	})
}

type itemPath struct {
	Kind string `path:"kind" enum:"pain_point,risk,field_request,hazard,distress_signal,action_item"`
	ID   string `path:"id"`
}

func (p itemPath) ref() domain.ItemRef {
	return domain.ItemRef{Kind: domain.SourceKind(p.Kind), ID: p.ID}
}

type itemOutput struct {
	Body ItemResponse `json:"body"`
}

func registerItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-item",
		Method:        http.MethodPost,
		Path:          "/items",
		Summary:       "Create item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AccountID string            `query:"account_id"`
		Body      CreateItemRequest `json:"body"`
	}) (*itemOutput, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.ItemCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			AccountID:   input.AccountID,
			Kind:        input.Body.Kind,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Priority:    stringOrEmpty(input.Body.Priority),
			Status:      stringOrEmpty(input.Body.Status),
			Severity:    stringOrEmpty(input.Body.Severity),
		}
		if input.Body.Target != nil {
			t, err := engine.ParseTarget(input.Body.Target.Mode, input.Body.Target.Value)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Target = t
		}
		it, err := e.CreateItem(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput{Body: itemResponse(it, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/items",
		Summary:     "List items",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AccountID    string `query:"account_id"`
		Kind         string `query:"kind"`
		InitiativeID string `query:"initiative_id"`
		Status       string `query:"status" doc:"Comma separated statuses"`
	}) (*struct {
		Body []ItemResponse `json:"body"`
	}, error) {
		filter := domain.ItemFilter{AccountID: input.AccountID, InitiativeID: input.InitiativeID}
		if input.Kind != "" {
			k, err := domain.ParseSourceKind(input.Kind)
			if err != nil {
				return nil, handleError(err)
			}
			filter.Kind = k
		}
		for _, raw := range splitList(input.Status) {
			st, ok := domain.ParseStatus(raw)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid status", map[string]any{"status": raw})
			}
			filter.Statuses = append(filter.Statuses, st)
		}
		items, err := e.ListItems(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ItemResponse `json:"body"`
		}{Body: mapItems(items, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{kind}/{id}",
		Summary:     "Get item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *itemPath) (*itemOutput, error) {
		it, err := e.GetItem(ctx, input.ref())
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput{Body: itemResponse(it, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-item",
		Method:      http.MethodPatch,
		Path:        "/items/{kind}/{id}",
		Summary:     "Update item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		itemPath
		Body UpdateItemRequest `json:"body"`
	}) (*itemOutput, error) {
		opts := engine.ItemUpdateOptions{
			Ref:         input.ref(),
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Status:      input.Body.Status,
			Severity:    input.Body.Severity,
		}
		if input.Body.Target != nil {
			t, err := engine.ParseTarget(input.Body.Target.Mode, input.Body.Target.Value)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Target = t
		}
		it, err := e.UpdateItem(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput{Body: itemResponse(it, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-item",
		Method:      http.MethodPost,
		Path:        "/items/{kind}/{id}/move",
		Summary:     "Reallocate item to a window, date or initiative",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		itemPath
		Body TargetRequest `json:"body"`
	}) (*itemOutput, error) {
		t, err := engine.ParseTarget(input.Body.Mode, input.Body.Value)
		if err != nil {
			return nil, handleError(err)
		}
		it, err := e.Move(ctx, engine.MoveCommand{Ref: input.ref(), Target: t})
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput{Body: itemResponse(it, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-item",
		Method:        http.MethodDelete,
		Path:          "/items/{kind}/{id}",
		Summary:       "Delete item",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *itemPath) (*struct{}, error) {
		if err := e.DeleteItem(ctx, input.ref()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerSources(api huma.API, e engine.Engine) {
	type sourceInput struct {
		Kind      string `path:"kind" enum:"pain_point,risk,field_request,hazard,distress_signal,action_item"`
		AccountID string `query:"account_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "ingest-source",
		Method:      http.MethodPost,
		Path:        "/sources/{kind}",
		Summary:     "Normalize and store one source record",
		Description: "The request body is the raw record of the given kind.",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *sourceInput) (*itemOutput, error) {
		data := bodyBytes(ctx)
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		src, err := normalize.Decode(domain.SourceKind(input.Kind), data)
		if err != nil {
			return nil, handleError(err)
		}
		it, err := e.Ingest(ctx, input.AccountID, src)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput{Body: itemResponse(it, now(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ingest-source-batch",
		Method:      http.MethodPost,
		Path:        "/sources/{kind}/batch",
		Summary:     "Normalize and store a JSON array of source records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *sourceInput) (*struct {
		Body IngestBatchResponse `json:"body"`
	}, error) {
		var raws []json.RawMessage
		if err := json.Unmarshal(bodyBytes(ctx), &raws); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body must be a JSON array", map[string]any{"error": err.Error()})
		}
		resp := IngestBatchResponse{Items: []ItemResponse{}, Errors: []string{}}
		var srcs []normalize.Source
		for i, raw := range raws {
			src, err := normalize.Decode(domain.SourceKind(input.Kind), raw)
			if err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("record %d: %v", i, err))
				continue
			}
			srcs = append(srcs, src)
		}
		res := e.IngestBatch(ctx, input.AccountID, srcs)
		resp.Items = mapItems(res.Items, now(e))
		resp.Errors = append(resp.Errors, res.Errors...)
		return &struct {
			Body IngestBatchResponse `json:"body"`
		}{Body: resp}, nil
	})
}

type initiativePath struct {
	ID string `path:"id"`
}

type initiativeOutput struct {
	Body InitiativeResponse `json:"body"`
}

func registerInitiatives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-initiative",
		Method:        http.MethodPost,
		Path:          "/initiatives",
		Summary:       "Create initiative",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AccountID string                  `query:"account_id"`
		Body      CreateInitiativeRequest `json:"body"`
	}) (*initiativeOutput, error) {
		due, err := parseDueDate(input.Body.DueDate)
		if err != nil {
			return nil, handleError(err)
		}
		in, err := e.CreateInitiative(ctx, engine.InitiativeCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			AccountID:   input.AccountID,
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			Color:       stringOrEmpty(input.Body.Color),
			DueDate:     due,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-initiatives",
		Method:      http.MethodGet,
		Path:        "/initiatives",
		Summary:     "List initiatives",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AccountID string `query:"account_id"`
		Status    string `query:"status" doc:"Comma separated statuses"`
	}) (*struct {
		Body []InitiativeResponse `json:"body"`
	}, error) {
		filter := domain.InitiativeFilter{AccountID: input.AccountID}
		for _, raw := range splitList(input.Status) {
			st, ok := domain.ParseInitiativeStatus(raw)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid status", map[string]any{"status": raw})
			}
			filter.Statuses = append(filter.Statuses, st)
		}
		items, err := e.ListInitiatives(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []InitiativeResponse `json:"body"`
		}{Body: mapInitiatives(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-initiative",
		Method:      http.MethodPost,
		Path:        "/initiatives/import",
		Summary:     "Create or refresh an initiative from a legacy bucket record",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body ImportInitiativeRequest `json:"body"`
	}) (*initiativeOutput, error) {
		in, err := e.ImportInitiative(ctx, normalize.InitiativeRecord{
			BucketID:    input.Body.BucketID,
			AccountID:   input.Body.AccountID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Color:       input.Body.Color,
			TargetDate:  input.Body.TargetDate,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-initiative",
		Method:      http.MethodGet,
		Path:        "/initiatives/{id}",
		Summary:     "Get initiative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *initiativePath) (*initiativeOutput, error) {
		in, err := e.GetInitiative(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-initiative",
		Method:      http.MethodPatch,
		Path:        "/initiatives/{id}",
		Summary:     "Edit initiative fields",
		Description: "Setting status here never touches member items; use the close operation to cascade.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		initiativePath
		Body UpdateInitiativeRequest `json:"body"`
	}) (*initiativeOutput, error) {
		due, err := parseDueDate(input.Body.DueDate)
		if err != nil {
			return nil, handleError(err)
		}
		in, err := e.EditInitiative(ctx, engine.InitiativeEditOptions{
			ID:           input.ID,
			Name:         input.Body.Name,
			Description:  input.Body.Description,
			Color:        input.Body.Color,
			DueDate:      due,
			ClearDueDate: input.Body.ClearDueDate,
			Status:       input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-initiative",
		Method:      http.MethodPost,
		Path:        "/initiatives/{id}/close",
		Summary:     "Complete initiative and close its open member items",
		Description: "Members that fail to close are listed in failed and partial is true; the initiative stays completed.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *initiativePath) (*struct {
		Body CloseInitiativeResponse `json:"body"`
	}, error) {
		res, err := e.CloseInitiative(ctx, input.ID)
		var partial *engine.PartialCascadeError
		if err != nil && !errors.As(err, &partial) {
			return nil, handleError(err)
		}
		return &struct {
			Body CloseInitiativeResponse `json:"body"`
		}{Body: closeResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-initiative",
		Method:      http.MethodPost,
		Path:        "/initiatives/{id}/reopen",
		Summary:     "Set initiative active again",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *initiativePath) (*initiativeOutput, error) {
		in, err := e.ReopenInitiative(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-initiative",
		Method:      http.MethodPost,
		Path:        "/initiatives/{id}/archive",
		Summary:     "Archive initiative",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *initiativePath) (*initiativeOutput, error) {
		in, err := e.ArchiveInitiative(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &initiativeOutput{Body: initiativeResponse(in)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-initiative",
		Method:        http.MethodDelete,
		Path:          "/initiatives/{id}",
		Summary:       "Delete initiative",
		Description:   "Member items are kept and show as unallocated.",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *initiativePath) (*struct{}, error) {
		if err := e.DeleteInitiative(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AccountID  string `query:"account_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"item,initiative"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		accountID := input.AccountID
		if accountID == "" && e.Config != nil {
			accountID = e.Config.Account.ID
		}
		items, err := e.ListEvents(ctx, domain.EventFilter{
			AccountID:  accountID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      limit + 1,
			BeforeID:   cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, ok := normalize.ParseDate(*raw)
	if !ok {
		return nil, domain.Invalid("due_date", "%q is not a date", *raw)
	}
	return &t, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func now(e engine.Engine) time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
