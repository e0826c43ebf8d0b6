package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/pathcheck/enclient/internal/errors"
	"github.com/pathcheck/enclient/internal/exposure"
	"github.com/pathcheck/enclient/internal/keys"
)

// SocketBridge speaks newline-delimited JSON to an out-of-process platform
// layer. The platform side pushes events as {"event","payload"} lines and
// answers calls as {"id","result","error"} lines correlated by request id.
type SocketBridge struct {
	conn   net.Conn
	hub    *Hub
	logger *slog.Logger

	writeMu sync.Mutex
	encoder *json.Encoder

	pendingMu sync.Mutex
	pending   map[string]chan rpcResponse

	// events decouples hub delivery from the read loop so handlers can call
	// back into the bridge without stalling response settlement. Delivery
	// order matches wire order.
	events chan Event

	closeOnce sync.Once
	done      chan struct{}
}

type rpcRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type pushLine struct {
	ID      string          `json:"id"`
	Event   EventType       `json:"event"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

// Dial connects to the platform layer at network/addr and starts the read
// loop. Events arriving on the connection are published on hub with decoded
// payloads.
func Dial(network, addr string, hub *Hub, logger *slog.Logger) (*SocketBridge, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial platform bridge: %w", err)
	}
	return NewSocketBridge(conn, hub, logger), nil
}

// NewSocketBridge wraps an established connection and starts the read loop.
func NewSocketBridge(conn net.Conn, hub *Hub, logger *slog.Logger) *SocketBridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &SocketBridge{
		conn:    conn,
		hub:     hub,
		logger:  logger,
		encoder: json.NewEncoder(conn),
		pending: make(map[string]chan rpcResponse),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
	go b.dispatchLoop()
	go b.readLoop()
	return b
}

func (b *SocketBridge) dispatchLoop() {
	for event := range b.events {
		b.hub.Publish(event)
	}
}

// Close tears down the connection and fails all in-flight calls.
func (b *SocketBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.conn.Close()
	})
	return err
}

func (b *SocketBridge) readLoop() {
	scanner := bufio.NewScanner(b.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var line pushLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			b.logger.Warn("discarding malformed bridge line", "error", err.Error())
			continue
		}

		if line.ID != "" {
			b.settle(rpcResponse{ID: line.ID, Result: line.Result, Error: line.Error})
			continue
		}
		if line.Event != "" {
			b.publishEvent(line.Event, line.Payload)
		}
	}

	select {
	case <-b.done:
	default:
		b.logger.Warn("platform bridge connection lost")
	}
	close(b.events)
	b.failPending()
}

func (b *SocketBridge) settle(resp rpcResponse) {
	b.pendingMu.Lock()
	ch, ok := b.pending[resp.ID]
	delete(b.pending, resp.ID)
	b.pendingMu.Unlock()

	if !ok {
		b.logger.Warn("bridge response for unknown request", "id", resp.ID)
		return
	}
	ch <- resp
}

func (b *SocketBridge) failPending() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

func (b *SocketBridge) publishEvent(eventType EventType, payload json.RawMessage) {
	switch eventType {
	case EventExposureRecordsUpdated:
		var records []exposure.RawExposure
		if err := json.Unmarshal(payload, &records); err != nil {
			b.logger.Warn("discarding malformed exposure event", "error", err.Error())
			return
		}
		b.events <- Event{Type: eventType, Payload: records}
	case EventENStatusUpdated:
		var tuple [2]string
		if err := json.Unmarshal(payload, &tuple); err != nil {
			b.logger.Warn("discarding malformed EN status event", "error", err.Error())
			return
		}
		b.events <- Event{Type: eventType, Payload: RawENStatus{
			Authorization: Authorization(tuple[0]),
			Enablement:    Enablement(tuple[1]),
		}}
	case EventBluetoothStatusUpdated, EventLocationStatusUpdated:
		var on bool
		if err := json.Unmarshal(payload, &on); err != nil {
			b.logger.Warn("discarding malformed service status event", "error", err.Error())
			return
		}
		b.events <- Event{Type: eventType, Payload: on}
	case EventAppStateChange, EventAppStateFocus:
		b.events <- Event{Type: eventType}
	default:
		b.logger.Debug("ignoring unknown bridge event", "event", string(eventType))
	}
}

// call performs one id-correlated request/response exchange and decodes the
// result into out when out is non-nil.
func (b *SocketBridge) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		rawParams = encoded
	}

	id := uuid.NewString()
	ch := make(chan rpcResponse, 1)
	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()

	b.writeMu.Lock()
	err := b.encoder.Encode(rpcRequest{ID: id, Method: method, Params: rawParams})
	b.writeMu.Unlock()
	if err != nil {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
		return fmt.Errorf("%s: %w", method, errors.ClassifyNetworkError(err))
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: %w", method, errors.ErrClosed)
		}
		if resp.Error != "" {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
		return fmt.Errorf("%s: %w", method, errors.ClassifyNetworkError(ctx.Err()))
	}
}

// GetCurrentENPermissionsStatus implements Native.
func (b *SocketBridge) GetCurrentENPermissionsStatus(ctx context.Context) (RawENStatus, error) {
	var tuple [2]string
	if err := b.call(ctx, "getCurrentENPermissionsStatus", nil, &tuple); err != nil {
		return RawENStatus{}, err
	}
	return RawENStatus{
		Authorization: Authorization(tuple[0]),
		Enablement:    Enablement(tuple[1]),
	}, nil
}

// RequestAuthorization implements Native.
func (b *SocketBridge) RequestAuthorization(ctx context.Context) error {
	return b.call(ctx, "requestAuthorization", nil, nil)
}

// GetCurrentExposures implements Native.
func (b *SocketBridge) GetCurrentExposures(ctx context.Context) ([]exposure.RawExposure, error) {
	var records []exposure.RawExposure
	if err := b.call(ctx, "getCurrentExposures", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchLastDetectionDate implements Native. A null result means no detection
// has completed yet.
func (b *SocketBridge) FetchLastDetectionDate(ctx context.Context) (*exposure.Posix, error) {
	var date *exposure.Posix
	if err := b.call(ctx, "fetchLastDetectionDate", nil, &date); err != nil {
		return nil, err
	}
	return date, nil
}

// DetectExposures implements Native.
func (b *SocketBridge) DetectExposures(ctx context.Context) error {
	return b.call(ctx, "detectExposures", nil, nil)
}

// FetchExposureKeys implements Native.
func (b *SocketBridge) FetchExposureKeys(ctx context.Context) ([]keys.RawExposureKey, error) {
	var rawKeys []keys.RawExposureKey
	if err := b.call(ctx, "fetchExposureKeys", nil, &rawKeys); err != nil {
		return nil, err
	}
	return rawKeys, nil
}

// StoreRevisionToken implements Native.
func (b *SocketBridge) StoreRevisionToken(ctx context.Context, token string) error {
	return b.call(ctx, "storeRevisionToken", map[string]string{"revisionToken": token}, nil)
}

// GetRevisionToken implements Native.
func (b *SocketBridge) GetRevisionToken(ctx context.Context) (string, error) {
	var token string
	if err := b.call(ctx, "getRevisionToken", nil, &token); err != nil {
		return "", err
	}
	return token, nil
}

// IsBluetoothEnabled implements Native.
func (b *SocketBridge) IsBluetoothEnabled(ctx context.Context) (bool, error) {
	var on bool
	if err := b.call(ctx, "isBluetoothEnabled", nil, &on); err != nil {
		return false, err
	}
	return on, nil
}

// IsLocationEnabled implements Native.
func (b *SocketBridge) IsLocationEnabled(ctx context.Context) (bool, error) {
	var on bool
	if err := b.call(ctx, "isLocationEnabled", nil, &on); err != nil {
		return false, err
	}
	return on, nil
}

// DeviceSupportsLocationlessScanning implements Native.
func (b *SocketBridge) DeviceSupportsLocationlessScanning(ctx context.Context) (bool, error) {
	var supported bool
	if err := b.call(ctx, "deviceSupportsLocationlessScanning", nil, &supported); err != nil {
		return false, err
	}
	return supported, nil
}

var _ Native = (*SocketBridge)(nil)
