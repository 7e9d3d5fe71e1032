package codec

import (
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-preparsed/engine"
	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/internal/binary"
	"github.com/wippyai/wasm-preparsed/ir"
)

// Option configures Serialize.
type Option func(*options)

type options struct {
	compress bool
}

// WithCompression stores the body s2-compressed.
func WithCompression() Option {
	return func(o *options) {
		o.compress = true
	}
}

// Serialize encodes m into an artifact loadable by engines with eng's
// fingerprint. It fails when m was compiled under a different
// configuration, or when lazily compiled functions are still untranslated.
func Serialize(m *ir.Module, eng *engine.Engine, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseEncode, "nil module")
	}

	fp := eng.Fingerprint()
	if diffs := m.Config.Diff(fp); len(diffs) > 0 {
		return nil, &errors.ConfigMismatchError{Phase: errors.PhaseEncode, Diffs: diffs}
	}
	if n := m.Untranslated(); n > 0 {
		return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Value(n).
			Detail("%d functions are not translated yet; compile eagerly to serialize", n).
			Build()
	}

	body := encodeModule(m)
	rawSize := len(body)
	var flags Flags
	if o.compress {
		body = s2.Encode(nil, body)
		flags |= FlagCompressed
	}
	if uint64(len(body)) > uint64(^uint32(0)) {
		return nil, errors.InvalidData(errors.PhaseEncode, "body of %d bytes exceeds the artifact limit", len(body))
	}

	h := Header{
		Version:  FormatVersion,
		Flags:    flags,
		Config:   fp,
		BodySize: uint32(len(body)),
		Checksum: xxhash.Sum64(body),
	}
	w := binary.NewWriter()
	h.encode(w)
	w.WriteBytes(body)

	Logger().Debug("module serialized",
		zap.Int("body_bytes", rawSize),
		zap.Int("artifact_bytes", w.Len()),
		zap.Bool("compressed", o.compress),
	)
	return w.Bytes(), nil
}

// Deserialize decodes an artifact for eng. It checks the header, compares
// the embedded fingerprint with eng's field by field and verifies the body
// checksum before decoding; the module is not validated again. The
// returned fingerprint is the one the artifact was built under.
func Deserialize(data []byte, eng *engine.Engine) (*ir.Module, engine.Fingerprint, error) {
	h, err := Inspect(data)
	if err != nil {
		return nil, engine.Fingerprint{}, err
	}
	if diffs := h.Config.Diff(eng.Fingerprint()); len(diffs) > 0 {
		return nil, h.Config, &errors.ConfigMismatchError{Phase: errors.PhaseDecode, Diffs: diffs}
	}

	body := data[HeaderSize:]
	switch {
	case uint64(len(body)) < uint64(h.BodySize):
		return nil, h.Config, errors.Decoding("artifact truncated", nil)
	case uint64(len(body)) > uint64(h.BodySize):
		return nil, h.Config, errors.Decoding("trailing bytes after body", nil)
	case xxhash.Sum64(body) != h.Checksum:
		return nil, h.Config, errors.Decoding("body checksum mismatch", nil)
	}

	if h.Compressed() {
		n, err := s2.DecodedLen(body)
		if err != nil {
			return nil, h.Config, errors.Decoding("compressed body", err)
		}
		if n > maxBodySize {
			return nil, h.Config, errors.Decoding("decompressed body too large", nil)
		}
		if body, err = s2.Decode(nil, body); err != nil {
			return nil, h.Config, errors.Decoding("compressed body", err)
		}
	}

	m, err := decodeModule(body)
	if err != nil {
		return nil, h.Config, err
	}
	m.Config = h.Config

	Logger().Debug("module deserialized",
		zap.Int("artifact_bytes", len(data)),
		zap.Int("functions", len(m.Funcs)),
		zap.Int("imports", len(m.Imports)),
	)
	return m, h.Config, nil
}

const maxBodySize = 1 << 30
