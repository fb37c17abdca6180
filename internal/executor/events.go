package executor

import (
	"github.com/aristath/sprinklerd/internal/events"
	"github.com/aristath/sprinklerd/internal/model"
)

// recordProgramStart emits the START event for a just-launched program,
// annotated with the weather/index adjustment summary if one was used
// anywhere in its zone list (§4.6).
func (e *Executor) recordProgramStart(p *model.Program, source string, amount int, runID string) {
	rec := model.EventRecord{Action: model.ActionStart, Program: model.StringPtr(p.Name), RunID: model.StringPtr(runID)}
	if source != "" {
		rec.Source = model.StringPtr(source)
		rec.Adjustment = model.IntPtr(amount)
	}
	e.emit(rec, events.RunStart)
}

func (e *Executor) recordProgramEnd(parent string, runID string) {
	rec := model.EventRecord{Action: model.ActionEnd, Program: model.StringPtr(parent), RunID: model.StringPtr(runID)}
	e.emit(rec, events.RunEnd)
}

func (e *Executor) recordSkip(zone int, program string) {
	rec := model.EventRecord{Action: model.ActionSkip, Zone: model.IntPtr(zone), Program: model.StringPtr(program)}
	e.emit(rec, events.RunSkip)
}

func (e *Executor) recordZoneStart(item model.RunItem) {
	rec := model.EventRecord{Action: model.ActionStart, Zone: model.IntPtr(item.Zone), Seconds: model.IntPtr(item.Seconds), RunID: model.StringPtr(item.RunID)}
	if item.Parent != "" {
		rec.Parent = model.StringPtr(item.Parent)
	}
	if item.AdjustSource != "" {
		rec.Source = model.StringPtr(item.AdjustSource)
		rec.Ratio = model.IntPtr(item.Ratio)
	}
	e.emit(rec, events.ZoneOn)
}

func (e *Executor) recordZoneEnd(item model.RunningState, seconds int) {
	rec := model.EventRecord{Action: model.ActionOff, Zone: model.IntPtr(item.Zone), Seconds: model.IntPtr(seconds), RunID: model.StringPtr(item.RunID)}
	if item.Parent != "" {
		rec.Parent = model.StringPtr(item.Parent)
	}
	e.emit(rec, events.ZoneOff)
}

func (e *Executor) recordCancel(item model.RunningState, runtime int) {
	rec := model.EventRecord{Action: model.ActionCancel, Runtime: model.IntPtr(runtime), RunID: model.StringPtr(item.RunID)}
	if item.Zone != model.PauseZone {
		rec.Zone = model.IntPtr(item.Zone)
	}
	if item.Parent != "" {
		rec.Parent = model.StringPtr(item.Parent)
	}
	e.emit(rec, events.RunCancel)
}

// emit persists rec to the durable sink and fans it out to the live bus,
// if either is configured (both are optional so the Executor can run
// standalone in tests).
func (e *Executor) emit(rec model.EventRecord, evt events.EventType) {
	if e.sink != nil {
		rec = e.sink.Record(rec)
	}
	if e.bus != nil {
		data := map[string]interface{}{"action": string(rec.Action)}
		if rec.Zone != nil {
			data["zone"] = *rec.Zone
		}
		if rec.Program != nil {
			data["program"] = *rec.Program
		}
		if rec.Parent != nil {
			data["parent"] = *rec.Parent
		}
		if rec.RunID != nil {
			data["run_id"] = *rec.RunID
		}
		e.bus.Emit(evt, "executor", data)
	}
}
