package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/vcr_agent/internal/cdp"
	"github.com/dgnsrekt/vcr_agent/internal/progress"
	"github.com/dgnsrekt/vcr_agent/internal/recorder"
)

// Service is the capture surface exposed over HTTP.
type Service interface {
	Record(ctx context.Context, url string) (recorder.Result, error)
	ListCassettes(ctx context.Context) ([]recorder.CassetteInfo, error)
}

// NewServer builds the serve-mode HTTP handler: capture API, cassette
// listing, health checks, and the progress event stream.
func NewServer(svc Service, broker *progress.Broker, cdpURL string) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Page Recorder API", "1.0.0")
	api := humachi.New(router, cfg)

	registerHandlers(api, svc, cdpURL)
	router.Get("/api/v1/events", progress.SSEHandler(broker))

	return router
}

func registerHandlers(api huma.API, svc Service, cdpURL string) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type deepHealthOutput struct {
		Body cdp.BrowserVersion
	}
	huma.Register(api, huma.Operation{OperationID: "deep-health", Method: http.MethodGet, Path: "/api/v1/health/deep", Summary: "Probe the browser CDP endpoint", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*deepHealthOutput, error) {
			probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			version, err := cdp.ProbeBrowser(probeCtx, cdpURL)
			if err != nil {
				return nil, huma.Error502BadGateway(err.Error())
			}
			out := &deepHealthOutput{}
			out.Body = version
			return out, nil
		})

	type captureInput struct {
		Body struct {
			URL string `json:"url" doc:"Capture target URL"`
		}
	}
	type captureOutput struct {
		Body struct {
			SessionID    string `json:"session_id"`
			Path         string `json:"path"`
			Interactions int    `json:"interactions"`
			DurationMs   int64  `json:"duration_ms"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "capture", Method: http.MethodPost, Path: "/api/v1/captures", Summary: "Capture a page into a cassette", Tags: []string{"Capture"}},
		func(ctx context.Context, input *captureInput) (*captureOutput, error) {
			url := strings.TrimSpace(input.Body.URL)
			if url == "" {
				return nil, huma.Error400BadRequest("url is required")
			}
			result, err := svc.Record(ctx, url)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &captureOutput{}
			out.Body.SessionID = result.SessionID
			out.Body.Path = result.Path
			out.Body.Interactions = result.Interactions
			out.Body.DurationMs = result.Duration.Milliseconds()
			return out, nil
		})

	type cassettesOutput struct {
		Body struct {
			Cassettes []recorder.CassetteInfo `json:"cassettes"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-cassettes", Method: http.MethodGet, Path: "/api/v1/cassettes", Summary: "List recorded cassettes", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*cassettesOutput, error) {
			infos, err := svc.ListCassettes(ctx)
			if err != nil {
				return nil, huma.Error500InternalServerError(err.Error())
			}
			out := &cassettesOutput{}
			out.Body.Cassettes = infos
			return out, nil
		})
}

func mapErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no host"), strings.Contains(msg, "parse url"):
		return huma.Error400BadRequest(msg)
	case strings.Contains(msg, "browser session"):
		return huma.Error502BadGateway(msg)
	default:
		return huma.Error500InternalServerError(msg)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
