package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/doorsync/doorsync-core/internal/door"
)

// defaultTimeout bounds one trigger round trip when no timeout is configured.
const defaultTimeout = 10 * time.Second

// maxResponseBody limits how much of an error response body is read for
// diagnostics.
const maxResponseBody = 4096

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds dispatcher configuration.
type Config struct {
	// BaseURL is the controller's HTTP base URL (http://host:port).
	BaseURL string

	// DoorIDs is the fixed set of valid doors. Triggers for other ids
	// fail immediately without a network call.
	DoorIDs []door.ID

	// Timeout bounds one request/response round trip. Default: 10s.
	Timeout time.Duration

	// Credentials is the optional bearer token for the controller's auth
	// layer.
	Credentials Credentials

	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
}

// Ack is the controller's acknowledgement of a trigger.
//
// An Ack means the command was accepted, not that the door moved: the
// resulting state change arrives asynchronously on the stream, never in
// the command response.
type Ack struct {
	Door    door.ID
	Message string
}

// Dispatcher issues door-trigger requests over the HTTP side-channel,
// independent of the streaming connection.
//
// It performs exactly one request per Trigger call and never retries;
// retry policy, if any, belongs to the caller. It never touches the door
// registry.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	baseURL    string
	doors      map[door.ID]struct{}
	timeout    time.Duration
	creds      Credentials
	httpClient *http.Client
	logger     Logger
}

// New creates a dispatcher from config.
func New(cfg Config) *Dispatcher {
	doors := make(map[door.ID]struct{}, len(cfg.DoorIDs))
	for _, id := range cfg.DoorIDs {
		doors[id] = struct{}{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Dispatcher{
		baseURL:    cfg.BaseURL,
		doors:      doors,
		timeout:    timeout,
		creds:      cfg.Credentials,
		httpClient: httpClient,
		logger:     noopLogger{},
	}
}

// SetLogger sets a logger for dispatch events.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Trigger requests one door trigger (simulated button press).
//
// Error kinds, checkable with errors.Is:
//   - ErrInvalidDoor: id outside the configured set; no network call made
//   - ErrStaleCredential: configured JWT already expired; no network call made
//   - ErrUnreachable: connection failure or round-trip timeout
//   - ErrRejected: controller answered non-200
//
// Parameters:
//   - ctx: Caller context; honoured in addition to the configured timeout
//   - id: Door to trigger
//
// Returns:
//   - Ack: Controller acknowledgement on success
//   - error: One of the dispatch errors above
func (d *Dispatcher) Trigger(ctx context.Context, id door.ID) (Ack, error) {
	if _, ok := d.doors[id]; !ok {
		return Ack{}, fmt.Errorf("%w: %d", ErrInvalidDoor, int(id))
	}
	if d.creds.Expired(time.Now()) {
		return Ack{}, ErrStaleCredential
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := d.baseURL + "/api/trigger/" + strconv.Itoa(int(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: building request: %w", ErrUnreachable, err)
	}
	d.creds.Authorize(req)

	d.logger.Debug("dispatching trigger", "door_id", int(id))
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := readErrorDetail(resp.Body)
		d.logger.Warn("trigger rejected", "door_id", int(id), "status", resp.StatusCode, "detail", detail)
		return Ack{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
	}

	ack := Ack{Door: id}
	var body struct {
		Message string `json:"message"`
	}
	// The message is informational; a missing or unreadable body still
	// counts as an accepted command.
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err == nil {
		ack.Message = body.Message
	}
	return ack, nil
}

// PollStatus fetches the full door set from the status endpoint.
//
// This is the fallback path when the stream is unavailable; the result has
// the same meaning as an initial_status frame. Ids outside the configured
// set are dropped (logged).
func (d *Dispatcher) PollStatus(ctx context.Context) (map[door.ID]door.State, error) {
	if d.creds.Expired(time.Now()) {
		return nil, ErrStaleCredential
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrUnreachable, err)
	}
	d.creds.Authorize(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, readErrorDetail(resp.Body))
	}

	var raw map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding status response: %w", ErrRejected, err)
	}

	states := make(map[door.ID]door.State, len(raw))
	for key, value := range raw {
		n, err := strconv.Atoi(key)
		if err != nil {
			d.logger.Warn("status poll returned non-integer door key, ignoring", "key", key)
			continue
		}
		id := door.ID(n)
		if _, ok := d.doors[id]; !ok {
			d.logger.Warn("status poll returned unconfigured door, ignoring", "door_id", n)
			continue
		}
		states[id] = door.ParseState(value)
	}
	return states, nil
}

// readErrorDetail extracts the controller's error detail from a failed
// response. The backend wraps errors as {"detail": "..."}; anything else
// is returned verbatim (truncated).
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseBody))
	if err != nil || len(data) == 0 {
		return "no detail"
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return string(data)
}
