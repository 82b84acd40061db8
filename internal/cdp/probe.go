package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// BrowserVersion describes the browser behind a CDP endpoint.
type BrowserVersion struct {
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	ProtocolVersion string `json:"protocolVersion"`
	UserAgent       string `json:"userAgent"`
}

// ProbeBrowser verifies a CDP endpoint end to end: HTTP discovery plus one
// Browser.getVersion round trip over the raw WebSocket. It deliberately
// avoids chromedp's session initialisation (SetAutoAttach, target discovery)
// so the probe cannot disturb a browser that is mid-capture.
func ProbeBrowser(ctx context.Context, httpBase string) (BrowserVersion, error) {
	wsURL, err := browserWSURL(ctx, httpBase)
	if err != nil {
		return BrowserVersion{}, err
	}

	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return BrowserVersion{}, fmt.Errorf("probe: dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return BrowserVersion{}, fmt.Errorf("probe: set deadline: %w", err)
		}
	} else if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return BrowserVersion{}, fmt.Errorf("probe: set deadline: %w", err)
	}

	req := struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}{ID: 1, Method: "Browser.getVersion"}
	data, err := json.Marshal(req)
	if err != nil {
		return BrowserVersion{}, fmt.Errorf("probe: marshal: %w", err)
	}
	if err := wsutil.WriteClientText(conn, data); err != nil {
		return BrowserVersion{}, fmt.Errorf("probe: send: %w", err)
	}

	// Skip any event notifications until our response arrives.
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			return BrowserVersion{}, fmt.Errorf("probe: read: %w", err)
		}
		var msg struct {
			ID     int64          `json:"id"`
			Result BrowserVersion `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.ID != 1 {
			continue
		}
		if msg.Error != nil {
			return BrowserVersion{}, fmt.Errorf("probe: browser error: %s", msg.Error.Message)
		}
		return msg.Result, nil
	}
}

// browserWSURL resolves the browser-level WebSocket endpoint via /json/version.
func browserWSURL(ctx context.Context, httpBase string) (string, error) {
	url := strings.TrimRight(httpBase, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("probe: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("probe: %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("probe: read version: %w", err)
	}
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &version); err != nil {
		return "", fmt.Errorf("probe: parse version: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("probe: no webSocketDebuggerUrl at %s", url)
	}
	return version.WebSocketDebuggerURL, nil
}
