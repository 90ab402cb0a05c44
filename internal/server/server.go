package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"pulsewatch/internal/domain"
	"pulsewatch/internal/repo"
	"pulsewatch/internal/scan"
)

// Config for the HTTP trigger handler.
type Config struct {
	Scanner  scan.Scanner
	Repo     repo.Repo
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"unauthorized"`
	Message string         `json:"message" example:"authentication required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the risk-scan triggers and the
// read-only project surfaces.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Pulsewatch API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerRiskScan(group, cfg.Scanner)
	registerProjects(group, cfg.Repo)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
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
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
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

func registerRiskScan(api huma.API, scanner scan.Scanner) {
	type reportOutput struct {
		Body domain.Report `json:"body"`
	}
	run := func(ctx context.Context) (*reportOutput, error) {
		report, err := scanner.Run(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &reportOutput{Body: report}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "run-risk-scan",
		Method:      http.MethodPost,
		Path:        "/risk-scan",
		Summary:     "Run a risk sweep (manual/service trigger)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*reportOutput, error) {
		if err := requireSource(ctx, "service", "jwt"); err != nil {
			return nil, err
		}
		return run(ctx)
	})

	huma.Register(api, huma.Operation{
		OperationID: "cron-risk-scan",
		Method:      http.MethodGet,
		Path:        "/risk-scan",
		Summary:     "Run a risk sweep (scheduler trigger)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*reportOutput, error) {
		if err := requireSource(ctx, "scheduler"); err != nil {
			return nil, err
		}
		return run(ctx)
	})
}

func registerProjects(api huma.API, r repo.Repo) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List tracked projects",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		if err := requireSource(ctx, "service", "jwt", "scheduler"); err != nil {
			return nil, err
		}
		items, err := r.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-activity",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/activity",
		Summary:     "Recent activity log entries for a project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.ActivityLogEntry `json:"body"`
	}, error) {
		if err := requireSource(ctx, "service", "jwt", "scheduler"); err != nil {
			return nil, err
		}
		if _, err := r.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		entries, err := r.ListActivity(ctx, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ActivityLogEntry `json:"body"`
		}{Body: entries}, nil
	})
}
