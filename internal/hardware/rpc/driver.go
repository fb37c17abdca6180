package rpc

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/hardware"
)

// DefaultSocketPath is the conventional location of the hardware RPC
// endpoint's Unix socket.
const DefaultSocketPath = "/var/run/sprinkler-hardware.sock"

// Driver is a hardware.Driver backed by a msgpack-rpc endpoint reached over
// a Unix socket. It never fails SetZone/Apply to the caller: while
// disconnected it stages the intended zone bank in memory and flushes it as
// soon as the background transport reconnects (§4.1 boot-race retry).
type Driver struct {
	t   *transport
	log zerolog.Logger

	mu      sync.Mutex
	pending map[int]bool
	dirty   bool

	rainCb   hardware.EdgeFunc
	buttonCb hardware.EdgeFunc
}

// New builds a Driver and starts its background connection management.
// socketPath defaults to DefaultSocketPath when empty.
func New(socketPath string, log zerolog.Logger) *Driver {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	d := &Driver{
		t:       newTransport(socketPath, log),
		log:     log.With().Str("component", "hardware_rpc_driver").Logger(),
		pending: make(map[int]bool),
	}
	d.t.onMethod("rainEdge", d.handleRainEdge)
	d.t.onMethod("buttonEdge", d.handleButtonEdge)
	d.t.onReconnect(d.flushPending)
	d.t.start()
	return d
}

func (d *Driver) Info() hardware.Info {
	result, err := d.t.call("info")
	if err != nil {
		d.log.Debug().Err(err).Msg("info call failed")
		return hardware.Info{ID: "rpc", Title: "hardware RPC endpoint (unreachable)"}
	}
	fields, ok := result.(map[string]interface{})
	if !ok {
		return hardware.Info{ID: "rpc", Title: "hardware RPC endpoint"}
	}
	info := hardware.Info{ID: "rpc", Title: "hardware RPC endpoint"}
	if v, ok := fields["id"].(string); ok {
		info.ID = v
	}
	if v, ok := fields["title"].(string); ok {
		info.Title = v
	}
	if v, ok := toInt(fields["zones.add"]); ok {
		info.Add = v
	}
	if v, ok := toInt(fields["zones.pin"]); ok {
		info.Pin = v
	}
	if v, ok := toInt(fields["zones.max"]); ok {
		info.Max = v
	}
	return info
}

func (d *Driver) Configure(hwConfig, userConfig any) error {
	return d.t.notify("configure", hwConfig, userConfig)
}

// SetZone stages index's state and attempts to forward it immediately.
// Failure is logged, never returned: the value is retried on reconnect.
func (d *Driver) SetZone(index int, on bool) {
	d.mu.Lock()
	d.pending[index] = on
	d.dirty = true
	d.mu.Unlock()

	if err := d.t.notify("setZone", index, on); err != nil {
		d.log.Debug().Err(err).Int("zone", index).Bool("on", on).Msg("setZone deferred, hardware endpoint unreachable")
	}
}

// Apply commits the staged bank. Best-effort, same as SetZone.
func (d *Driver) Apply() {
	if err := d.t.notify("apply"); err != nil {
		d.log.Debug().Err(err).Msg("apply deferred, hardware endpoint unreachable")
	}
}

func (d *Driver) RainSensor() bool {
	result, err := d.t.call("rainSensor")
	if err != nil {
		return false
	}
	return toBool(result)
}

func (d *Driver) Button() bool {
	result, err := d.t.call("button")
	if err != nil {
		return false
	}
	return toBool(result)
}

func (d *Driver) RainInterrupt(cb hardware.EdgeFunc) {
	d.mu.Lock()
	d.rainCb = cb
	d.mu.Unlock()
}

func (d *Driver) ButtonInterrupt(cb hardware.EdgeFunc) {
	d.mu.Lock()
	d.buttonCb = cb
	d.mu.Unlock()
}

func (d *Driver) Close() error {
	d.t.stop()
	return nil
}

func (d *Driver) handleRainEdge(params []interface{}) {
	d.mu.Lock()
	cb := d.rainCb
	d.mu.Unlock()
	if cb != nil {
		cb(hardware.EdgeEvent{Output: firstBool(params)})
	}
}

func (d *Driver) handleButtonEdge(params []interface{}) {
	d.mu.Lock()
	cb := d.buttonCb
	d.mu.Unlock()
	if cb != nil {
		cb(hardware.EdgeEvent{Output: firstBool(params)})
	}
}

// flushPending re-sends every staged zone state and an apply once the
// transport reconnects after a boot race or a dropped socket.
func (d *Driver) flushPending() {
	d.mu.Lock()
	if !d.dirty {
		d.mu.Unlock()
		return
	}
	snapshot := make(map[int]bool, len(d.pending))
	for k, v := range d.pending {
		snapshot[k] = v
	}
	d.dirty = false
	d.mu.Unlock()

	for zone, on := range snapshot {
		if err := d.t.notify("setZone", zone, on); err != nil {
			d.log.Debug().Err(err).Msg("flushPending: setZone failed, will retry next reconnect")
			d.mu.Lock()
			d.dirty = true
			d.mu.Unlock()
			return
		}
	}
	if err := d.t.notify("apply"); err != nil {
		d.log.Debug().Err(err).Msg("flushPending: apply failed, will retry next reconnect")
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()
	}
}

// firstBool extracts the boolean "output" field the hardware endpoint sends
// as the sole notification parameter, {output: bool}.
func firstBool(params []interface{}) bool {
	if len(params) == 0 {
		return false
	}
	if m, ok := params[0].(map[string]interface{}); ok {
		return toBool(m["output"])
	}
	return toBool(params[0])
}
