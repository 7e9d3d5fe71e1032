package codec

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/internal/binary"
)

// Magic opens every artifact.
const Magic = "WPRE"

// FormatVersion identifies the IR encoding. It must be bumped on any
// change to the IR or to the body layout.
const FormatVersion uint16 = 1

// HeaderSize is the fixed size of the artifact header.
const HeaderSize = 4 + 2 + 2 + fingerprintSize + 4 + 8

const fingerprintSize = 1 + 1 + 8 + 4*4

// Flags describe how the body is stored.
type Flags uint16

const (
	// FlagCompressed marks an s2-compressed body.
	FlagCompressed Flags = 1 << iota

	knownFlags = FlagCompressed
)

// Header is the fixed-size artifact prefix.
type Header struct {
	Config   engine.Fingerprint
	Checksum uint64
	BodySize uint32
	Version  uint16
	Flags    Flags
}

// Compressed reports whether the body is compressed.
func (h Header) Compressed() bool {
	return h.Flags&FlagCompressed != 0
}

func (h Header) encode(w *binary.Writer) {
	w.WriteBytes([]byte(Magic))
	w.WriteU16LE(h.Version)
	w.WriteU16LE(uint16(h.Flags))

	fp := h.Config
	w.Byte(boolByte(fp.ConsumeFuel))
	w.Byte(byte(fp.CompilationMode))
	w.WriteU64LE(uint64(fp.Features))
	w.WriteU32LE(fp.FuelCosts.Base)
	w.WriteU32LE(fp.FuelCosts.Memory)
	w.WriteU32LE(fp.FuelCosts.Call)
	w.WriteU32LE(fp.FuelCosts.BulkBytesPerFuel)

	w.WriteU32LE(h.BodySize)
	w.WriteU64LE(h.Checksum)
}

// Inspect decodes the header of an artifact without touching the body.
func Inspect(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.Decoding("artifact shorter than header", nil)
	}
	if string(data[:4]) != Magic {
		return Header{}, errors.Decoding("not an artifact: bad magic", nil)
	}

	r := binary.NewReader(data[4:HeaderSize])
	var h Header
	h.Version, _ = r.ReadU16LE()
	flags, _ := r.ReadU16LE()
	h.Flags = Flags(flags)

	fuel, _ := r.ReadByte()
	mode, _ := r.ReadByte()
	features, _ := r.ReadU64LE()
	h.Config.ConsumeFuel = fuel != 0
	h.Config.CompilationMode = engine.CompilationMode(mode)
	h.Config.Features = api.CoreFeatures(features)
	h.Config.FuelCosts.Base, _ = r.ReadU32LE()
	h.Config.FuelCosts.Memory, _ = r.ReadU32LE()
	h.Config.FuelCosts.Call, _ = r.ReadU32LE()
	h.Config.FuelCosts.BulkBytesPerFuel, _ = r.ReadU32LE()

	h.BodySize, _ = r.ReadU32LE()
	h.Checksum, _ = r.ReadU64LE()

	switch {
	case h.Version != FormatVersion:
		return h, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(h.Version).
			Detail("format version %d, this build reads %d", h.Version, FormatVersion).
			Build()
	case h.Flags&^knownFlags != 0:
		return h, errors.Decoding("unknown header flags", nil)
	case fuel > 1:
		return h, errors.Decoding("corrupt fingerprint", nil)
	}
	return h, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
