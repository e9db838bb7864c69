package traci

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"
	"time"
)

// ConnectError reports failure to establish a protocol session after
// exhausting every dial attempt.
type ConnectError struct {
	Port     int
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to engine on port %d after %d attempts: %v", e.Port, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// API is the capability handed to state subsystems: they may issue
// subscriptions and read the latest step results, but never step the
// simulation or close the session.
type API interface {
	SubscribeSim(vars []byte) error
	SubscribeVehicle(id string, vars []byte) error
	SubscribeTrafficLight(id string, vars []byte) error
	Results() *StepResults
}

// Client is a live control-protocol session with the engine.
//
// The client is synchronous: every call blocks until its round trip
// completes, and calls must not overlap. One client per engine process.
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	results *StepResults

	apiVersion    int
	engineVersion string
}

var _ API = (*Client)(nil)

// Connect opens a protocol session to the engine on the given local port,
// retrying up to maxAttempts times with a fixed delay between attempts to
// tolerate the engine's startup latency. The version exchange runs as part
// of each attempt, so a socket that accepts but cannot speak the protocol
// still counts as a failed attempt.
func Connect(port, maxAttempts int, delay time.Duration, logger *slog.Logger) (*Client, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			c := &Client{
				conn:    conn,
				logger:  logger,
				results: newStepResults(),
			}
			if err = c.getVersion(); err == nil {
				logger.Info("engine_connected",
					"port", port,
					"attempt", attempt,
					"api_version", c.apiVersion,
					"engine_version", c.engineVersion,
				)
				return c, nil
			}
			conn.Close()
		}
		lastErr = err
		logger.Debug("connect_attempt_failed",
			"port", port,
			"attempt", attempt,
			"error", err,
		)
		if attempt < maxAttempts {
			time.Sleep(delay)
		}
	}

	return nil, &ConnectError{Port: port, Attempts: maxAttempts, Err: lastErr}
}

// Version returns the protocol API version and engine version string
// captured during the connect handshake.
func (c *Client) Version() (int, string) {
	return c.apiVersion, c.engineVersion
}

// request sends a single command and reads the reply message, returning a
// reader positioned after the status command.
func (c *Client) request(id byte, payload []byte) (*reader, error) {
	if _, err := c.conn.Write(packMessage(packCommand(id, payload))); err != nil {
		return nil, fmt.Errorf("command 0x%02x: write: %w", id, err)
	}

	body, err := readMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02x: read: %w", id, err)
	}

	r := newReader(body)
	statusID, status, err := r.commandHeader()
	if err != nil {
		return nil, fmt.Errorf("command 0x%02x: status: %w", id, err)
	}
	if statusID != id {
		return nil, fmt.Errorf("command 0x%02x: status for 0x%02x", id, statusID)
	}
	result, err := status.readByte()
	if err != nil {
		return nil, err
	}
	desc, err := status.readString()
	if err != nil {
		return nil, err
	}
	if result != StatusOK {
		return nil, fmt.Errorf("command 0x%02x rejected by engine: %s", id, desc)
	}
	return r, nil
}

// getVersion performs the version exchange that completes the handshake.
func (c *Client) getVersion() error {
	r, err := c.request(CmdGetVersion, nil)
	if err != nil {
		return err
	}
	id, payload, err := r.commandHeader()
	if err != nil {
		return fmt.Errorf("version response: %w", err)
	}
	if id != CmdGetVersion {
		return fmt.Errorf("version response: unexpected command 0x%02x", id)
	}
	api, err := payload.readInt()
	if err != nil {
		return err
	}
	version, err := payload.readString()
	if err != nil {
		return err
	}
	c.apiVersion = int(api)
	c.engineVersion = version
	return nil
}

// SetOrder declares this client's position among the engine's expected
// protocol clients. Must be sent before the first step.
func (c *Client) SetOrder(order int) error {
	w := &writer{}
	w.writeInt(int32(order))
	_, err := c.request(CmdSetOrder, w.buf)
	return err
}

// subscribe issues a variable subscription for one object in one domain.
func (c *Client) subscribe(cmd byte, objectID string, vars []byte) error {
	w := &writer{}
	w.writeDouble(0)                 // begin time
	w.writeDouble(math.MaxFloat64)   // end time: never expire
	w.writeString(objectID)
	w.writeByte(byte(len(vars)))
	w.buf = append(w.buf, vars...)
	_, err := c.request(cmd, w.buf)
	return err
}

// SubscribeSim registers the simulation-level signal set.
func (c *Client) SubscribeSim(vars []byte) error {
	return c.subscribe(CmdSubscribeSimVariable, "", vars)
}

// SubscribeVehicle registers per-step variables for one vehicle.
func (c *Client) SubscribeVehicle(id string, vars []byte) error {
	return c.subscribe(CmdSubscribeVehicleVariable, id, vars)
}

// SubscribeTrafficLight registers per-step variables for one traffic light.
func (c *Client) SubscribeTrafficLight(id string, vars []byte) error {
	return c.subscribe(CmdSubscribeTLVariable, id, vars)
}

// Step advances the engine by exactly one configured step length and
// collects every subscription response delivered with it. The parsed
// results replace the previous step's results.
func (c *Client) Step() (*StepResults, error) {
	w := &writer{}
	w.writeDouble(0) // zero target time: advance one step
	r, err := c.request(CmdSimStep, w.buf)
	if err != nil {
		return nil, err
	}

	count, err := r.readInt()
	if err != nil {
		return nil, fmt.Errorf("step: subscription count: %w", err)
	}

	results := newStepResults()
	for i := int32(0); i < count; i++ {
		id, payload, err := r.commandHeader()
		if err != nil {
			return nil, fmt.Errorf("step: subscription %d: %w", i, err)
		}
		if err := results.parseSubscriptionResponse(id, payload); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()
	return results, nil
}

// Results returns the subscription values from the most recent step.
func (c *Client) Results() *StepResults {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Close ends the protocol session. Idempotent: closing a closed client is a
// no-op. The engine is asked to shut down cleanly first; socket errors at
// this point are expected (the engine may already be gone) and only logged.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if _, err := c.request(CmdClose, nil); err != nil {
		c.logger.Debug("close_command_failed", "error", err)
	}
	return c.conn.Close()
}
