package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doorsync/doorsync-core/internal/command"
	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/stream"
)

// pollInterval is how often the status endpoint is polled while the
// stream is down. Polling stops the moment the stream is connected.
const pollInterval = 30 * time.Second

// Logger interface for client events.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the components the client coordinates.
type Deps struct {
	Store   *door.Store
	Session *stream.Session

	// Dispatcher is optional; without it Trigger fails and the poll
	// fallback is disabled.
	Dispatcher *command.Dispatcher

	Logger Logger
}

// Client coordinates the stream session, wire codec, and door registry.
//
// All registry writes funnel through one event loop goroutine: frames from
// the session and snapshots from the poll fallback are merged onto a single
// path, so Apply is never called concurrently. Reads (Snapshot, Get) go
// straight to the registry from any goroutine.
type Client struct {
	store      *door.Store
	session    *stream.Session
	dispatcher *command.Dispatcher
	logger     Logger

	// polled carries snapshots from the poll fallback into the event
	// loop, preserving the single-writer discipline.
	polled chan door.InitialSnapshot

	// onSnapshot, when set, runs after each applied snapshot. Used to
	// refresh downstream consumers (retained MQTT topics, state gauges)
	// that would otherwise miss changes which happened while offline.
	onSnapshot func(map[door.ID]door.State)
}

// New creates a client from its dependencies.
func New(deps Deps) (*Client, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("door store is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("stream session is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		store:      deps.Store,
		session:    deps.Session,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		polled:     make(chan door.InitialSnapshot, 1),
	}, nil
}

// SetOnSnapshot sets a hook invoked after each applied full snapshot
// (initial_status frame or poll result), with a copy of the new states.
// Must be called before Run.
func (c *Client) SetOnSnapshot(fn func(map[door.ID]door.State)) {
	c.onSnapshot = fn
}

// Run starts the session and processes events until ctx is cancelled.
//
// It blocks for the lifetime of the sync loop and always returns
// ctx.Err() after a clean shutdown.
func (c *Client) Run(ctx context.Context) error {
	c.session.Start()
	defer c.session.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.eventLoop(gctx)
	})

	if c.dispatcher != nil {
		g.Go(func() error {
			return c.pollLoop(gctx)
		})
	}

	return g.Wait()
}

// eventLoop is the single registry writer. It decodes frames, merges in
// polled snapshots, and applies everything in arrival order.
func (c *Client) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snapshot := <-c.polled:
			c.apply(snapshot)

		case frame, ok := <-c.session.Frames():
			if !ok {
				// Session stopped underneath us.
				return nil
			}

			event, err := stream.DecodeFrame(frame)
			if err != nil {
				if errors.Is(err, stream.ErrKeepAliveFrame) {
					continue
				}
				// Malformed or unknown frames are dropped, never fatal:
				// the next frame may be fine.
				c.logger.Warn("dropping undecodable frame", "error", err)
				continue
			}
			c.apply(event)
		}
	}
}

// apply writes one event to the registry and fires the snapshot hook.
func (c *Client) apply(event door.Event) {
	c.store.Apply(event)

	if snapshot, ok := event.(door.InitialSnapshot); ok {
		c.logger.Info("full snapshot applied", "doors", len(snapshot.Doors))
		if c.onSnapshot != nil {
			c.onSnapshot(c.store.Snapshot())
		}
	}
}

// pollLoop fetches the status endpoint while the stream is disconnected.
//
// Poll results enter the registry as full snapshots via the event loop.
// A healthy stream makes this loop a no-op.
func (c *Client) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if c.session.State() == stream.Connected {
			continue
		}

		states, err := c.dispatcher.PollStatus(ctx)
		if err != nil {
			c.logger.Debug("status poll failed", "error", err)
			continue
		}

		snapshot := door.InitialSnapshot{Doors: states}
		select {
		case c.polled <- snapshot:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Event loop busy with a pending poll result; skip this one.
		}
	}
}

// Trigger requests a door trigger via the command side-channel.
func (c *Client) Trigger(ctx context.Context, id door.ID) (command.Ack, error) {
	if c.dispatcher == nil {
		return command.Ack{}, command.ErrUnreachable
	}
	return c.dispatcher.Trigger(ctx, id)
}

// Snapshot returns a copy of all current door states.
func (c *Client) Snapshot() map[door.ID]door.State {
	return c.store.Snapshot()
}

// Subscribe registers a transition callback on the registry.
func (c *Client) Subscribe(fn door.TransitionFunc) door.Subscription {
	return c.store.Subscribe(fn)
}

// StreamState reports the session's connection state.
func (c *Client) StreamState() stream.ConnectionState {
	return c.session.State()
}
