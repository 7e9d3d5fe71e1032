package interp

import (
	"math"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/ir"
)

func i32div(op ir.Op, a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, trap(errors.TrapIntegerDivideByZero)
	}
	switch op {
	case ir.OpI32DivS:
		if int32(a) == math.MinInt32 && int32(b) == -1 {
			return 0, trap(errors.TrapIntegerOverflow)
		}
		return uint32(int32(a) / int32(b)), nil
	case ir.OpI32DivU:
		return a / b, nil
	case ir.OpI32RemS:
		if int32(b) == -1 {
			return 0, nil
		}
		return uint32(int32(a) % int32(b)), nil
	}
	return a % b, nil
}

func i64div(op ir.Op, a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, trap(errors.TrapIntegerDivideByZero)
	}
	switch op {
	case ir.OpI64DivS:
		if int64(a) == math.MinInt64 && int64(b) == -1 {
			return 0, trap(errors.TrapIntegerOverflow)
		}
		return uint64(int64(a) / int64(b)), nil
	case ir.OpI64DivU:
		return a / b, nil
	case ir.OpI64RemS:
		if int64(b) == -1 {
			return 0, nil
		}
		return uint64(int64(a) % int64(b)), nil
	}
	return a % b, nil
}

// fmin and fmax propagate NaN and order -0 below +0.
func fmin(a, b float64) float64 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return math.NaN()
	case a == 0 && b == 0:
		if math.Signbit(a) {
			return a
		}
		return b
	case a < b:
		return a
	}
	return b
}

func fmax(a, b float64) float64 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return math.NaN()
	case a == 0 && b == 0:
		if math.Signbit(a) {
			return b
		}
		return a
	case a > b:
		return a
	}
	return b
}

// truncTarget describes the integer range of a float-to-int conversion.
// The bounds are exact in float64: lo is the smallest valid truncated
// value and hi the first invalid one.
type truncTarget struct {
	lo, hi float64
	signed bool
	wide   bool
}

var (
	truncI32 = truncTarget{lo: math.MinInt32, hi: 1 << 31, signed: true}
	truncU32 = truncTarget{lo: 0, hi: 1 << 32}
	truncI64 = truncTarget{lo: math.MinInt64, hi: 1 << 63, signed: true, wide: true}
	truncU64 = truncTarget{lo: 0, hi: 1 << 64, wide: true}
)

// truncOperand decodes the source float of a truncation and its target.
func truncOperand(op ir.Op, v uint64) (float64, truncTarget) {
	var x float64
	switch op {
	case ir.OpI32TruncF32S, ir.OpI32TruncF32U, ir.OpI64TruncF32S, ir.OpI64TruncF32U,
		ir.OpI32TruncSatF32S, ir.OpI32TruncSatF32U, ir.OpI64TruncSatF32S, ir.OpI64TruncSatF32U:
		x = float64(f32(v))
	default:
		x = f64(v)
	}
	switch op {
	case ir.OpI32TruncF32S, ir.OpI32TruncF64S, ir.OpI32TruncSatF32S, ir.OpI32TruncSatF64S:
		return x, truncI32
	case ir.OpI32TruncF32U, ir.OpI32TruncF64U, ir.OpI32TruncSatF32U, ir.OpI32TruncSatF64U:
		return x, truncU32
	case ir.OpI64TruncF32S, ir.OpI64TruncF64S, ir.OpI64TruncSatF32S, ir.OpI64TruncSatF64S:
		return x, truncI64
	}
	return x, truncU64
}

func (t truncTarget) convert(x float64) uint64 {
	switch {
	case t.signed && t.wide:
		return uint64(int64(x))
	case t.signed:
		return i32u(int32(x))
	case t.wide:
		return uint64(x)
	}
	return uint64(uint32(x))
}

func (t truncTarget) max() uint64 {
	switch {
	case t.signed && t.wide:
		return math.MaxInt64
	case t.signed:
		return math.MaxInt32
	case t.wide:
		return math.MaxUint64
	}
	return math.MaxUint32
}

func (t truncTarget) min() uint64 {
	switch {
	case t.signed && t.wide:
		return 1 << 63
	case t.signed:
		return 1 << 31
	}
	return 0
}

// truncate is the trapping float-to-int conversion.
func truncate(op ir.Op, v uint64) (uint64, error) {
	x, t := truncOperand(op, v)
	if math.IsNaN(x) {
		return 0, trap(errors.TrapInvalidConversion)
	}
	x = math.Trunc(x)
	if x < t.lo || x >= t.hi {
		return 0, trap(errors.TrapIntegerOverflow)
	}
	return t.convert(x), nil
}

// truncateSat is the saturating float-to-int conversion.
func truncateSat(op ir.Op, v uint64) uint64 {
	x, t := truncOperand(op, v)
	x = math.Trunc(x)
	switch {
	case math.IsNaN(x):
		return 0
	case x < t.lo:
		return t.min()
	case x >= t.hi:
		return t.max()
	}
	return t.convert(x)
}
