// Package rpc implements hardware.Driver as a generic msgpack-rpc client
// talking to an external process over a Unix domain socket. It forwards
// abstract verbs (setZone, apply, rainSensor, button, configure) and
// receives asynchronous rainEdge/buttonEdge notifications; it has no
// opinion on the bit-level relay or shift-register protocol the external
// process actually speaks to the pins — that stays outside the core
// (§4.1, §1 Non-goals). Grounded on internal/mcu's client/protocol split.
package rpc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// ReadTimeout bounds how long Call waits for a response.
	ReadTimeout = 5 * time.Second
	// WriteTimeout bounds how long a single message send may take.
	WriteTimeout = 5 * time.Second
	// reconnectInterval is how often the background loop retries a dead
	// connection and flushes any staged zone state once reconnected.
	reconnectInterval = 2 * time.Second
)

// msgpack-rpc message types (implements the standard msgpack-rpc spec).
const (
	msgTypeRequest      = 0
	msgTypeResponse     = 1
	msgTypeNotification = 2
)

var (
	// ErrNotConnected is returned by Call/Notify while no socket connection
	// is established.
	ErrNotConnected = errors.New("not connected to hardware RPC endpoint")
	// ErrSocketNotFound is returned when the configured socket doesn't exist.
	ErrSocketNotFound = errors.New("hardware RPC socket not found")
)

// RPCError represents an error returned by the remote endpoint.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("hardware RPC error %d: %s", e.Code, e.Message)
}

type pendingCall struct {
	resp chan []interface{}
}

// transport owns the socket connection, message framing and the
// request/response/notification demultiplexer. Driver holds one.
type transport struct {
	socketPath string
	log        zerolog.Logger

	mu          sync.Mutex
	conn        net.Conn
	isConnected bool
	msgID       uint32
	pending     map[uint32]*pendingCall

	notifyMu sync.RWMutex
	onNotify map[string]func([]interface{})

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newTransport(socketPath string, log zerolog.Logger) *transport {
	return &transport{
		socketPath: socketPath,
		log:        log.With().Str("component", "hardware_rpc").Logger(),
		pending:    make(map[uint32]*pendingCall),
		onNotify:   make(map[string]func([]interface{})),
		stopCh:     make(chan struct{}),
	}
}

// start attempts an initial connection and launches the background
// reconnect loop. It never fails: a missing socket at startup is a normal
// boot race, logged and retried (§4.1 Failure semantics).
func (t *transport) start() {
	if err := t.connect(); err != nil {
		t.log.Info().Err(err).Str("socket_path", t.socketPath).Msg("hardware RPC endpoint not available yet, will retry")
	}
	t.wg.Add(1)
	go t.reconnectLoop()
}

func (t *transport) stop() {
	close(t.stopCh)
	t.wg.Wait()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
		t.isConnected = false
	}
}

func (t *transport) connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked()
}

func (t *transport) connectLocked() error {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
		t.isConnected = false
	}

	if _, err := os.Stat(t.socketPath); os.IsNotExist(err) {
		return ErrSocketNotFound
	}

	conn, err := net.Dial("unix", t.socketPath)
	if err != nil {
		return err
	}

	t.conn = conn
	t.isConnected = true
	t.log.Info().Str("socket_path", t.socketPath).Msg("connected to hardware RPC endpoint")

	t.wg.Add(1)
	go t.readLoop(conn)

	return nil
}

func (t *transport) connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isConnected
}

func (t *transport) markDisconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isConnected = false
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// reconnectLoop retries the connection while disconnected. Callers that
// staged state via SetZone while disconnected are expected to re-Apply it
// on the next successful connect (the Driver does this).
func (t *transport) reconnectLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if !t.connected() {
				if err := t.connect(); err == nil {
					t.notifyMu.RLock()
					fn := t.onNotify["__reconnected"]
					t.notifyMu.RUnlock()
					if fn != nil {
						fn(nil)
					}
				}
			}
		}
	}
}

// onReconnect registers a hook invoked (on a background goroutine) right
// after a successful reconnect, used by Driver to flush staged zone state.
func (t *transport) onReconnect(fn func()) {
	t.notifyMu.Lock()
	t.onNotify["__reconnected"] = func([]interface{}) { fn() }
	t.notifyMu.Unlock()
}

// onMethod registers a handler for an inbound notification method name
// (e.g. "rainEdge", "buttonEdge").
func (t *transport) onMethod(method string, fn func([]interface{})) {
	t.notifyMu.Lock()
	t.onNotify[method] = fn
	t.notifyMu.Unlock()
}

func (t *transport) readLoop(conn net.Conn) {
	defer t.wg.Done()
	decoder := msgpack.NewDecoder(conn)
	for {
		var msg []interface{}
		if err := decoder.Decode(&msg); err != nil {
			t.log.Debug().Err(err).Msg("hardware RPC connection closed")
			t.markDisconnected()
			t.failAllPending()
			return
		}
		if len(msg) == 0 {
			continue
		}
		kind, _ := toInt(msg[0])
		switch kind {
		case msgTypeResponse:
			t.dispatchResponse(msg)
		case msgTypeNotification:
			t.dispatchNotification(msg)
		}
	}
}

func (t *transport) dispatchResponse(msg []interface{}) {
	if len(msg) < 4 {
		return
	}
	id, ok := toInt(msg[1])
	if !ok {
		return
	}
	t.mu.Lock()
	call, ok := t.pending[uint32(id)]
	if ok {
		delete(t.pending, uint32(id))
	}
	t.mu.Unlock()
	if ok {
		call.resp <- msg
	}
}

func (t *transport) dispatchNotification(msg []interface{}) {
	if len(msg) < 3 {
		return
	}
	method, _ := msg[1].(string)
	t.notifyMu.RLock()
	fn := t.onNotify[method]
	t.notifyMu.RUnlock()
	if fn == nil {
		return
	}
	params, _ := msg[2].([]interface{})
	fn(params)
}

func (t *transport) failAllPending() {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint32]*pendingCall)
	t.mu.Unlock()
	for _, call := range pending {
		close(call.resp)
	}
}

func (t *transport) nextMsgID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgID++
	return t.msgID
}

// call sends an RPC request and blocks for its response or ReadTimeout.
func (t *transport) call(method string, params ...interface{}) (interface{}, error) {
	t.mu.Lock()
	conn := t.conn
	connected := t.isConnected
	t.mu.Unlock()
	if !connected || conn == nil {
		return nil, ErrNotConnected
	}

	id := t.nextMsgID()
	call := &pendingCall{resp: make(chan []interface{}, 1)}
	t.mu.Lock()
	t.pending[id] = call
	t.mu.Unlock()

	request := []interface{}{msgTypeRequest, id, method, params}
	if err := t.send(conn, request); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		t.markDisconnected()
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case msg, ok := <-call.resp:
		if !ok {
			return nil, ErrNotConnected
		}
		return parseResponse(msg)
	case <-time.After(ReadTimeout):
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("hardware RPC call %q timed out", method)
	}
}

// notify sends a fire-and-forget RPC notification.
func (t *transport) notify(method string, params ...interface{}) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.isConnected
	t.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	notification := []interface{}{msgTypeNotification, method, params}
	if err := t.send(conn, notification); err != nil {
		t.markDisconnected()
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (t *transport) send(conn net.Conn, msg interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return msgpack.NewEncoder(conn).Encode(msg)
}

func parseResponse(response []interface{}) (interface{}, error) {
	if len(response) < 4 {
		return nil, fmt.Errorf("invalid response format: expected 4 elements, got %d", len(response))
	}
	if response[2] != nil {
		if errData, ok := response[2].([]interface{}); ok && len(errData) >= 2 {
			code, _ := toInt(errData[0])
			msg, _ := errData[1].(string)
			return nil, &RPCError{Code: code, Message: msg}
		}
		return nil, fmt.Errorf("RPC error: %v", response[2])
	}
	return response[3], nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
