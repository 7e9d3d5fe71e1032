package wasm

// LEB128 append helpers for building instruction sequences.

// AppendU32 appends v as unsigned LEB128.
func AppendU32(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendS32 appends v as signed LEB128.
func AppendS32(buf []byte, v int32) []byte {
	return AppendS64(buf, int64(v))
}

// AppendS64 appends v as signed LEB128.
func AppendS64(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// ConstI32 returns the constant expression "i32.const v; end".
func ConstI32(v int32) []byte {
	return append(AppendS32([]byte{OpI32Const}, v), OpEnd)
}

// ConstI64 returns the constant expression "i64.const v; end".
func ConstI64(v int64) []byte {
	return append(AppendS64([]byte{OpI64Const}, v), OpEnd)
}

// ConstGlobal returns the constant expression "global.get idx; end".
func ConstGlobal(idx uint32) []byte {
	return append(AppendU32([]byte{OpGlobalGet}, idx), OpEnd)
}
