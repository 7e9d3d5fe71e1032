package interp

import (
	"context"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
	"github.com/wippyai/wasm-preparsed/store"
)

// HostFunc implements an imported function. Params arrive in stack[:p] and
// results are written to stack[:r]; the slice has length max(p, r).
type HostFunc func(ctx context.Context, stack []uint64) error

// Limits bounds the resources of an instance.
type Limits struct {
	// MaxCallDepth is the number of nested guest frames allowed.
	MaxCallDepth int
	// MaxMemoryPages caps memory growth regardless of the module maximum.
	MaxMemoryPages uint32
}

// LimitsFromConfig extracts the runtime limits of cfg.
func LimitsFromConfig(cfg engine.Config) Limits {
	return Limits{MaxCallDepth: cfg.MaxCallDepth, MaxMemoryPages: cfg.MemoryLimitPages()}
}

// Instance is the runtime state of one module instantiation. It is not
// safe for concurrent use.
type Instance struct {
	Module  *ir.Module
	Memory  *store.Memory
	Tables  [][]uint32
	Globals []uint64
	Host    []HostFunc
	Meter   *store.Meter

	droppedData []bool
	droppedElem []bool
	limits      Limits
	stack       []uint64
	frames      []frame
	polls       uint32
}

// New allocates the memory, tables and globals of m. Segments and the start
// function are applied by Init. host must hold one function per import.
func New(m *ir.Module, host []HostFunc, meter *store.Meter, limits Limits) (*Instance, error) {
	if len(host) != len(m.Imports) {
		return nil, errors.InvalidInput(errors.PhaseInstantiate,
			"%d host functions for %d imports", len(host), len(m.Imports))
	}
	if meter == nil {
		meter = store.NewMeter(false)
	}
	if limits.MaxCallDepth <= 0 {
		limits.MaxCallDepth = engine.DefaultConfig().MaxCallDepth
	}
	if limits.MaxMemoryPages == 0 || limits.MaxMemoryPages > engine.MaxPages {
		limits.MaxMemoryPages = engine.MaxPages
	}

	inst := &Instance{
		Module:      m,
		Host:        host,
		Meter:       meter,
		limits:      limits,
		droppedData: make([]bool, len(m.Data)),
		droppedElem: make([]bool, len(m.Elements)),
	}

	if mem := m.Memory; mem != nil {
		maxPages := limits.MaxMemoryPages
		if mem.HasMax && mem.Max < maxPages {
			maxPages = mem.Max
		}
		if mem.Min > maxPages {
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
				Detail("memory minimum %d pages exceeds limit %d", mem.Min, maxPages).
				Build()
		}
		inst.Memory = store.NewMemory(mem.Min, maxPages)
	}

	for _, t := range m.Tables {
		tbl := make([]uint32, t.Min)
		for i := range tbl {
			tbl[i] = ir.NullFunc
		}
		inst.Tables = append(inst.Tables, tbl)
	}

	inst.Globals = make([]uint64, len(m.Globals))
	for i, g := range m.Globals {
		v, err := inst.eval(g.Init)
		if err != nil {
			return nil, err
		}
		inst.Globals[i] = v
	}
	return inst, nil
}

func (inst *Instance) eval(c ir.ConstExpr) (uint64, error) {
	switch c.Kind {
	case ir.ConstValue, ir.ConstRefFunc, ir.ConstRefNull:
		return c.Value, nil
	case ir.ConstGlobal:
		if c.Value >= uint64(len(inst.Globals)) {
			return 0, errors.InvalidData(errors.PhaseInstantiate, "global %d out of range", c.Value)
		}
		return inst.Globals[c.Value], nil
	}
	return 0, errors.InvalidData(errors.PhaseInstantiate, "unknown constant kind %d", c.Kind)
}

// Init applies active element and data segments in order, drops active and
// declarative segments, then runs the start function. A segment that does
// not fit traps and leaves the instance unusable.
func (inst *Instance) Init(ctx context.Context) error {
	m := inst.Module
	for i, seg := range m.Elements {
		if seg.Mode == ir.ElementPassive {
			continue
		}
		inst.droppedElem[i] = true
		if seg.Mode == ir.ElementDeclarative {
			continue
		}
		if int(seg.Table) >= len(inst.Tables) {
			return errors.InvalidData(errors.PhaseInstantiate, "element %d targets missing table %d", i, seg.Table)
		}
		off, err := inst.eval(seg.Offset)
		if err != nil {
			return err
		}
		tbl := inst.Tables[seg.Table]
		if uint64(uint32(off))+uint64(len(seg.Funcs)) > uint64(len(tbl)) {
			return errors.Trap(errors.TrapTableOutOfBounds,
				"element segment %d at %d exceeds table size %d", i, uint32(off), len(tbl))
		}
		copy(tbl[uint32(off):], seg.Funcs)
	}

	for i, seg := range m.Data {
		if seg.Passive {
			continue
		}
		inst.droppedData[i] = true
		off, err := inst.eval(seg.Offset)
		if err != nil {
			return err
		}
		if err := inst.Memory.Write(uint32(off), seg.Init); err != nil {
			return err
		}
	}

	if m.Start != nil {
		if _, err := inst.Call(ctx, *m.Start, nil); err != nil {
			return err
		}
	}
	return nil
}

// Global returns the value of global idx.
func (inst *Instance) Global(idx uint32) (uint64, bool) {
	if int(idx) >= len(inst.Globals) {
		return 0, false
	}
	return inst.Globals[idx], true
}
