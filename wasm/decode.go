package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-preparsed/internal/binary"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseModule decodes a WebAssembly binary module. It checks structure only;
// type checking of function bodies is left to the validator.
func ParseModule(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastSectionOrder int

	for !r.EOF() {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, fmt.Errorf("unknown section id %d", sectionID)
			}
			if order <= lastSectionOrder {
				return nil, fmt.Errorf("section %d appears out of order", sectionID)
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		sectionData, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(sectionData)
		if err := parseSection(sectionID, sr, m); err != nil {
			return nil, fmt.Errorf("%s section: %w", sectionName(sectionID), err)
		}
		if sectionID != SectionCustom && !sr.EOF() {
			return nil, fmt.Errorf("%s section: %d trailing bytes", sectionName(sectionID), sr.Len())
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function and code section counts differ: %d != %d", len(m.Funcs), len(m.Code))
	}
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return nil, fmt.Errorf("data count %d does not match data section length %d", *m.DataCount, len(m.Data))
	}

	return m, nil
}

func parseSection(id byte, r *binary.Reader, m *Module) error {
	switch id {
	case SectionCustom:
		return parseCustomSection(r, m)
	case SectionType:
		return parseTypeSection(r, m)
	case SectionImport:
		return parseImportSection(r, m)
	case SectionFunction:
		return parseFunctionSection(r, m)
	case SectionTable:
		return parseTableSection(r, m)
	case SectionMemory:
		return parseMemorySection(r, m)
	case SectionGlobal:
		return parseGlobalSection(r, m)
	case SectionExport:
		return parseExportSection(r, m)
	case SectionStart:
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.Start = &idx
		return nil
	case SectionElement:
		return parseElementSection(r, m)
	case SectionCode:
		return parseCodeSection(r, m)
	case SectionData:
		return parseDataSection(r, m)
	case SectionDataCount:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		m.DataCount = &n
		return nil
	}
	return fmt.Errorf("unknown section id %d", id)
}

// sectionOrder returns the canonical position of a section. DataCount sits
// between Element and Code.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionGlobal:
		return 6
	case SectionExport:
		return 7
	case SectionStart:
		return 8
	case SectionElement:
		return 9
	case SectionDataCount:
		return 10
	case SectionCode:
		return 11
	case SectionData:
		return 12
	}
	return 0
}

func sectionName(id byte) string {
	switch id {
	case SectionCustom:
		return "custom"
	case SectionType:
		return "type"
	case SectionImport:
		return "import"
	case SectionFunction:
		return "function"
	case SectionTable:
		return "table"
	case SectionMemory:
		return "memory"
	case SectionGlobal:
		return "global"
	case SectionExport:
		return "export"
	case SectionStart:
		return "start"
	case SectionElement:
		return "element"
	case SectionCode:
		return "code"
	case SectionData:
		return "data"
	case SectionDataCount:
		return "datacount"
	}
	return fmt.Sprintf("section(%d)", id)
}

func parseCustomSection(r *binary.Reader, m *Module) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(r.Len())
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data})
	return nil
}

func parseTypeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(3)
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := 0; i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("type %d: unsupported type form 0x%02x", i, form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return fmt.Errorf("type %d params: %w", i, err)
		}
		results, err := readValTypes(r)
		if err != nil {
			return fmt.Errorf("type %d results: %w", i, err)
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadCount(1)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	types := make([]ValType, count)
	for i := range types {
		if types[i], err = readValType(r); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case ValI32, ValI64, ValF32, ValF64:
		return b, nil
	}
	return 0, fmt.Errorf("unsupported value type 0x%02x", b)
}

func readLimits(r *binary.Reader) (Limits, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	if l.Min, err = r.ReadU32(); err != nil {
		return l, err
	}
	switch flag {
	case LimitsNoMax:
	case LimitsHasMax:
		max, err := r.ReadU32()
		if err != nil {
			return l, err
		}
		l.Max = &max
	default:
		return l, fmt.Errorf("unsupported limits flag 0x%02x", flag)
	}
	return l, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := r.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	if elem != RefTypeFunc {
		return TableType{}, fmt.Errorf("unsupported table element type 0x%02x", elem)
	}
	limits, err := readLimits(r)
	return TableType{ElemType: elem, Limits: limits}, err
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability 0x%02x", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func parseImportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(4)
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := 0; i < count; i++ {
		var imp Import
		if imp.Module, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Name, err = r.ReadName(); err != nil {
			return err
		}
		if imp.Desc.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		switch imp.Desc.Kind {
		case KindFunc:
			if imp.Desc.TypeIdx, err = r.ReadU32(); err != nil {
				return err
			}
		case KindTable:
			tt, err := readTableType(r)
			if err != nil {
				return err
			}
			imp.Desc.Table = &tt
		case KindMemory:
			l, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Desc.Memory = &MemoryType{Limits: l}
		case KindGlobal:
			gt, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Desc.Global = &gt
		default:
			return fmt.Errorf("import %d: unknown kind 0x%02x", i, imp.Desc.Kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(1)
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func parseTableSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(3)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		tt, err := readTableType(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

func parseMemorySection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(2)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, MemoryType{Limits: l})
	}
	return nil
}

func parseGlobalSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(4)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return fmt.Errorf("global %d: %w", i, err)
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func parseExportSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(3)
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := 0; i < count; i++ {
		var e Export
		if e.Name, err = r.ReadName(); err != nil {
			return err
		}
		if e.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		if e.Kind > KindGlobal {
			return fmt.Errorf("export %q: unknown kind 0x%02x", e.Name, e.Kind)
		}
		if e.Idx, err = r.ReadU32(); err != nil {
			return err
		}
		m.Exports = append(m.Exports, e)
	}
	return nil
}

// readConstExpr returns the raw bytes of a constant expression, end opcode
// included.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	start := r.Position()
	op, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpI32Const:
		_, err = r.ReadS32()
	case OpI64Const:
		_, err = r.ReadS64()
	case OpF32Const:
		_, err = r.ReadBytes(4)
	case OpF64Const:
		_, err = r.ReadBytes(8)
	case OpGlobalGet, OpRefFunc:
		_, err = r.ReadU32()
	case OpRefNull:
		_, err = r.ReadByte()
	default:
		return nil, fmt.Errorf("unsupported constant expression opcode 0x%02x", op)
	}
	if err != nil {
		return nil, err
	}
	end, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if end != OpEnd {
		return nil, fmt.Errorf("constant expression not terminated by end (got 0x%02x)", end)
	}
	length := r.Position() - start
	return r.Slice(start, length), nil
}

func parseElementSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(1)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		elem, err := readElement(r)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		m.Elements = append(m.Elements, elem)
	}
	return nil
}

func readElement(r *binary.Reader) (Element, error) {
	var e Element
	var err error
	if e.Flags, err = r.ReadU32(); err != nil {
		return e, err
	}
	if e.Flags > 7 {
		return e, fmt.Errorf("invalid element flags %d", e.Flags)
	}

	// bit 0: passive or declarative, bit 1: explicit table index or
	// declarative, bit 2: expressions instead of function indices.
	switch {
	case e.Flags&1 == 0:
		e.Mode = SegmentActive
	case e.Flags&2 == 0:
		e.Mode = SegmentPassive
	default:
		e.Mode = SegmentDeclarative
	}
	usesExprs := e.Flags&4 != 0

	if e.Mode == SegmentActive {
		if e.Flags&2 != 0 {
			if e.TableIdx, err = r.ReadU32(); err != nil {
				return e, err
			}
		}
		if e.Offset, err = readConstExpr(r); err != nil {
			return e, err
		}
	}
	if e.Flags&3 != 0 {
		kind, err := r.ReadByte()
		if err != nil {
			return e, err
		}
		want := ElemKindFunc
		if usesExprs {
			want = RefTypeFunc
		}
		if kind != want {
			return e, fmt.Errorf("unsupported element kind 0x%02x", kind)
		}
	}

	n, err := r.ReadCount(1)
	if err != nil {
		return e, err
	}
	e.FuncIdxs = make([]uint32, n)
	for j := range e.FuncIdxs {
		if !usesExprs {
			if e.FuncIdxs[j], err = r.ReadU32(); err != nil {
				return e, err
			}
			continue
		}
		expr, err := readConstExpr(r)
		if err != nil {
			return e, err
		}
		if e.FuncIdxs[j], err = elemExprFunc(expr); err != nil {
			return e, err
		}
	}
	return e, nil
}

func elemExprFunc(expr []byte) (uint32, error) {
	er := binary.NewReader(expr)
	op, _ := er.ReadByte()
	switch op {
	case OpRefNull:
		return NullFunc, nil
	case OpRefFunc:
		return er.ReadU32()
	}
	return 0, fmt.Errorf("unsupported element expression opcode 0x%02x", op)
}

func parseCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(2)
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, 0, count)
	for i := 0; i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		fb, err := parseFuncBody(body)
		if err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		m.Code = append(m.Code, fb)
	}
	return nil
}

// maxLocals bounds the declared locals of one function.
const maxLocals = 50000

func parseFuncBody(body []byte) (FuncBody, error) {
	r := binary.NewReader(body)
	groups, err := r.ReadCount(2)
	if err != nil {
		return FuncBody{}, err
	}
	var fb FuncBody
	var total uint64
	for i := 0; i < groups; i++ {
		n, err := r.ReadU32()
		if err != nil {
			return fb, err
		}
		total += uint64(n)
		if total > maxLocals {
			return fb, fmt.Errorf("too many locals")
		}
		vt, err := readValType(r)
		if err != nil {
			return fb, err
		}
		fb.Locals = append(fb.Locals, LocalEntry{Count: n, ValType: vt})
	}
	code, err := r.ReadBytes(r.Len())
	if err != nil {
		return fb, err
	}
	if len(code) == 0 || code[len(code)-1] != OpEnd {
		return fb, fmt.Errorf("function body not terminated by end")
	}
	fb.Code = code
	return fb, nil
}

func parseDataSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadCount(1)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, 0, count)
	for i := 0; i < count; i++ {
		var d DataSegment
		if d.Flags, err = r.ReadU32(); err != nil {
			return err
		}
		switch d.Flags {
		case 0:
			d.Mode = SegmentActive
		case 1:
			d.Mode = SegmentPassive
		case 2:
			d.Mode = SegmentActive
			if d.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("data %d: invalid flags %d", i, d.Flags)
		}
		if d.Mode == SegmentActive {
			if d.Offset, err = readConstExpr(r); err != nil {
				return fmt.Errorf("data %d: %w", i, err)
			}
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		if d.Init, err = r.ReadBytes(int(n)); err != nil {
			return fmt.Errorf("data %d: %w", i, err)
		}
		m.Data = append(m.Data, d)
	}
	return nil
}
