package recorder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/vcr_agent/internal/browser"
	"github.com/dgnsrekt/vcr_agent/internal/capture"
	"github.com/dgnsrekt/vcr_agent/internal/cassette"
	"github.com/dgnsrekt/vcr_agent/internal/cdp"
	"github.com/dgnsrekt/vcr_agent/internal/config"
	"github.com/dgnsrekt/vcr_agent/internal/progress"
	"github.com/dgnsrekt/vcr_agent/internal/storage"
)

// Result summarizes a completed capture run.
type Result struct {
	SessionID    string
	Path         string
	Interactions int
	Duration     time.Duration
}

// CassetteInfo describes one cassette on disk.
type CassetteInfo struct {
	Host     string    `json:"host"`
	File     string    `json:"file"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Driver is the browser side of a capture session: it feeds the typed event
// streams while a page loads.
type Driver interface {
	capture.Source
	Start(ctx context.Context, url string) error
	Finish()
	Close()
}

// chromeDriver launches (or attaches to) a Chrome/Chromium instance and
// streams its network events over CDP.
type chromeDriver struct {
	launcher *browser.Launcher
	session  *cdp.Session
}

func newChromeDriver(cfg *config.Config) Driver {
	return &chromeDriver{
		launcher: browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			Headless:   cfg.Headless,
		}),
		session: cdp.NewSession(cfg),
	}
}

func (d *chromeDriver) Start(ctx context.Context, url string) error {
	if err := d.launcher.Launch(ctx); err != nil {
		return err
	}
	return d.session.Start(ctx, url)
}

func (d *chromeDriver) Finish() { d.session.Finish() }

func (d *chromeDriver) Close() {
	d.session.Close()
	if d.launcher.Running() {
		d.launcher.Stop()
	}
}

func (d *chromeDriver) Requests() <-chan capture.RequestStarted    { return d.session.Requests() }
func (d *chromeDriver) Responses() <-chan capture.ResponseReceived { return d.session.Responses() }

// Service runs capture sessions: browser driver → correlator → builder →
// serializer → cassette writer.
type Service struct {
	cfg       *config.Config
	broker    *progress.Broker
	journal   *storage.Journal
	writer    *storage.CassetteWriter
	newDriver func(cfg *config.Config) Driver
}

// NewService builds a capture service. broker and journal may be nil.
func NewService(cfg *config.Config, broker *progress.Broker, journal *storage.Journal) *Service {
	return &Service{
		cfg:       cfg,
		broker:    broker,
		journal:   journal,
		writer:    storage.NewCassetteWriter(cfg.CassetteDir),
		newDriver: newChromeDriver,
	}
}

// Record captures all network traffic for one page load of rawURL and
// persists it as a cassette. Partial captures (timeout mid-page) are still
// written; only a serialization or write failure is fatal.
func (s *Service) Record(ctx context.Context, rawURL string) (Result, error) {
	start := time.Now()

	// Fail on unaddressable URLs before any browser work.
	if _, err := storage.CassettePath(s.cfg.CassetteDir, rawURL); err != nil {
		return Result{}, err
	}

	sessionID := uuid.NewString()
	slog.Info("capture session starting", "session_id", sessionID, "url", rawURL)
	s.publish(progress.Event{SessionID: sessionID, Kind: progress.KindSessionStarted, URL: rawURL})
	s.record(sessionID, "session_started", rawURL, 0, "")

	builder := cassette.NewBuilder()
	correlator := capture.NewCorrelator(builder, capture.Hooks{
		OnInteraction: func(in cassette.Interaction) {
			slog.Debug("interaction recorded",
				"session_id", sessionID,
				"method", in.Request.Method,
				"url", in.Request.URI,
				"status", in.Response.Status.Code)
			s.publish(progress.Event{
				SessionID: sessionID,
				Kind:      progress.KindInteractionRecorded,
				URL:       in.Request.URI,
				Status:    in.Response.Status.Code,
			})
			s.record(sessionID, "interaction_recorded", in.Request.URI, in.Response.Status.Code, "")
		},
		OnCorrelationMiss: func(url string) {
			s.publish(progress.Event{SessionID: sessionID, Kind: progress.KindCorrelationMiss, URL: url})
			s.record(sessionID, "correlation_miss", url, 0, "")
		},
		OnBodyReadError: func(url string, err error) {
			s.publish(progress.Event{SessionID: sessionID, Kind: progress.KindBodyReadFailed, URL: url, Detail: err.Error()})
			s.record(sessionID, "body_read_failed", url, 0, err.Error())
		},
	})

	driver := s.newDriver(s.cfg)
	defer driver.Close()

	captureCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	defer cancel()

	consumerDone := make(chan struct{})
	go func() {
		correlator.Run(ctx, driver)
		close(consumerDone)
	}()

	if err := driver.Start(captureCtx, rawURL); err != nil {
		if captureCtx.Err() == nil {
			driver.Finish()
			<-consumerDone
			return Result{}, fmt.Errorf("browser session: %w", err)
		}
		// Timeout mid-capture: abandon in-flight work but keep what landed.
		slog.Warn("capture timed out, serializing partial capture", "session_id", sessionID, "error", err)
	}

	driver.Finish()
	<-consumerDone

	if n := correlator.PendingCount(); n > 0 {
		slog.Debug("abandoning requests that never completed", "session_id", sessionID, "count", n)
	}

	doc := builder.Finalize()
	data, err := doc.Encode()
	if err != nil {
		return Result{}, err
	}
	path, err := s.writer.Write(rawURL, data)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		SessionID:    sessionID,
		Path:         path,
		Interactions: len(doc.HTTPInteractions),
		Duration:     time.Since(start),
	}
	slog.Info("capture session finished",
		"session_id", sessionID,
		"path", path,
		"interactions", result.Interactions,
		"duration_ms", result.Duration.Milliseconds())
	s.publish(progress.Event{SessionID: sessionID, Kind: progress.KindSessionFinished, URL: rawURL, Detail: path})
	s.record(sessionID, "session_finished", rawURL, 0, path)
	return result, nil
}

// ListCassettes walks the cassette directory and describes every fixture.
func (s *Service) ListCassettes(ctx context.Context) ([]CassetteInfo, error) {
	var infos []CassetteInfo
	err := filepath.WalkDir(s.cfg.CassetteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), storage.CassetteExt) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, CassetteInfo{
			Host:     filepath.Base(filepath.Dir(path)),
			File:     d.Name(),
			Path:     path,
			Size:     fi.Size(),
			Modified: fi.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		// Nothing captured yet is not an error.
		if errors.Is(err, fs.ErrNotExist) {
			return []CassetteInfo{}, nil
		}
		return nil, err
	}
	return infos, nil
}

func (s *Service) publish(evt progress.Event) {
	s.broker.Publish(evt)
}

func (s *Service) record(sessionID, event, url string, status int, detail string) {
	s.journal.Record(storage.JournalEntry{
		Time:      time.Now().UTC(),
		SessionID: sessionID,
		Event:     event,
		URL:       url,
		Status:    status,
		Detail:    detail,
	})
}
