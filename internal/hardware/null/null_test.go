package null

import (
	"testing"

	"github.com/aristath/sprinklerd/internal/hardware"
)

func TestDriverIsInert(t *testing.T) {
	d := New()

	if d.RainSensor() {
		t.Fatal("null driver must never report rain")
	}
	if d.Button() {
		t.Fatal("null driver must never report a button press")
	}

	// SetZone/Apply/Configure/interrupt registration must never panic or
	// block regardless of call order.
	d.SetZone(0, true)
	d.Apply()
	if err := d.Configure(nil, nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	d.RainInterrupt(func(e hardware.EdgeEvent) {})
	_ = d.Close()
}
