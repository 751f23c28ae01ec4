package wasm

import (
	"fmt"
	"iter"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6D}
var version = [4]byte{0x01, 0x00, 0x00, 0x00}

// Parser drives the module grammar over a Reader and realizes it as a lazy
// event stream. Grounded on parser.Parser.ParseComponent's preamble-then-
// section-loop shape (parser/parser.go) and wasm.ReadExports's "read id,
// read LEB128 size, slice exactly that many bytes" loop (wasm/parser.go),
// unified into one pass that decodes every section rather than a subset.
type Parser struct {
	r *Reader
}

// NewParser constructs a Parser over data. data is not copied; the caller
// must not mutate it while the Parser or any Payload it yielded is in use.
func NewParser(data []byte) *Parser {
	return &Parser{r: NewReader(data)}
}

// Events returns the single-use, ordered, lazy event stream: a Version
// bookend, one event per section in input order, and a final End bookend.
// Range-over-func cancellation (the consumer returning false from yield)
// simply stops the Parser; it holds nothing but its Reader's cursor over
// the caller-owned buffer, so there is nothing to release.
func (p *Parser) Events() iter.Seq2[Payload, error] {
	return func(yield func(Payload, error) bool) {
		if err := p.readHeader(); err != nil {
			yield(nil, err)
			return
		}
		if !yield(Version{}, nil) {
			return
		}
		for !p.r.AtEnd() {
			payload, err := p.readSection()
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(payload, nil) {
				return
			}
		}
		yield(End{}, nil)
	}
}

func (p *Parser) readHeader() error {
	magicBytes, err := p.r.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("%w: reading magic", err)
	}
	if [4]byte(magicBytes) != magic {
		return p.r.errf(ErrInvalidMagic, "got % x", magicBytes)
	}
	versionBytes, err := p.r.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("%w: reading version", err)
	}
	if [4]byte(versionBytes) != version {
		return p.r.errf(ErrUnsupportedVersion, "got % x", versionBytes)
	}
	return nil
}

// readSection reads one (id, size, body) triple and decodes the body over
// a bounded sub-Reader, then checks the sub-Reader was exhausted exactly —
// the sub-reader discipline from SPEC_FULL.md §4.1.
func (p *Parser) readSection() (Payload, error) {
	idByte, err := p.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: reading section id", err)
	}
	id := SectionID(idByte)
	if !id.valid() {
		return nil, p.r.errf(ErrUnknownSection, "id %d", idByte)
	}
	size, err := p.r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading section size", err)
	}
	sub, err := p.r.Sub(size)
	if err != nil {
		return nil, fmt.Errorf("section id %d body: %w", id, err)
	}
	payload, err := decodeSection(id, sub)
	if err != nil {
		return nil, fmt.Errorf("section id %d: %w", id, err)
	}
	if !sub.AtEnd() {
		return nil, sub.errf(ErrSectionSizeMismatch, "%d bytes left unread in section id %d", sub.Len(), id)
	}
	return payload, nil
}

func decodeSection(id SectionID, r *Reader) (Payload, error) {
	switch id {
	case SectionCustom:
		return decodeCustomSection(r)
	case SectionType:
		return decodeTypeSection(r)
	case SectionImport:
		return decodeImportSection(r)
	case SectionFunction:
		return decodeFunctionSection(r)
	case SectionTable:
		return decodeTableSection(r)
	case SectionMemory:
		return decodeMemorySection(r)
	case SectionGlobal:
		return decodeGlobalSection(r)
	case SectionExport:
		return decodeExportSection(r)
	case SectionStart:
		return decodeStartSection(r)
	case SectionElement:
		return decodeElementSection(r)
	case SectionCode:
		return decodeCodeSection(r)
	case SectionData:
		return decodeDataSection(r)
	case SectionDataCount:
		return decodeDataCountSection(r)
	default:
		return nil, r.errf(ErrUnknownSection, "id %d", id)
	}
}

func decodeCustomSection(r *Reader) (Payload, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("custom section name: %w", err)
	}
	data, err := r.ReadBytes(r.Len())
	if err != nil {
		return nil, fmt.Errorf("custom section payload: %w", err)
	}
	return CustomSection{Name: name, Payload: data}, nil
}

func decodeTypeSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("type count: %w", err)
	}
	types := make([]FuncType, n)
	for i := range types {
		ft, err := r.ReadFuncType()
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", i, err)
		}
		types[i] = ft
	}
	return TypeSection{Types: types}, nil
}

func decodeImportSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("import count: %w", err)
	}
	imports := make([]Import, n)
	for i := range imports {
		imp, err := decodeImport(r)
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		imports[i] = imp
	}
	return ImportSection{Imports: imports}, nil
}

// decodeImport always dispatches on the kind byte before reading the rest
// of the descriptor, per the Open Question resolution recorded in
// SPEC_FULL.md §9: this supersedes the teacher's wasm.ReadExports, which
// only kind-dispatches as much as its narrower export-recovery task needs.
func decodeImport(r *Reader) (Import, error) {
	module, err := r.ReadString()
	if err != nil {
		return Import{}, fmt.Errorf("module name: %w", err)
	}
	field, err := r.ReadString()
	if err != nil {
		return Import{}, fmt.Errorf("field name: %w", err)
	}
	kind, err := r.ReadExternalKind()
	if err != nil {
		return Import{}, fmt.Errorf("kind: %w", err)
	}
	var desc ImportDesc
	switch kind {
	case KindFunction:
		idx, err := r.ReadVarU32()
		if err != nil {
			return Import{}, fmt.Errorf("func type index: %w", err)
		}
		desc = ImportFunc{TypeIndex: idx}
	case KindTable:
		tt, err := r.ReadTableType()
		if err != nil {
			return Import{}, fmt.Errorf("table type: %w", err)
		}
		desc = ImportTable{Type: tt}
	case KindMemory:
		mt, err := r.ReadMemoryType()
		if err != nil {
			return Import{}, fmt.Errorf("memory type: %w", err)
		}
		desc = ImportMemory{Type: mt}
	case KindGlobal:
		gt, err := r.ReadGlobalType()
		if err != nil {
			return Import{}, fmt.Errorf("global type: %w", err)
		}
		desc = ImportGlobal{Type: gt}
	}
	return Import{Module: module, Field: field, Desc: desc}, nil
}

func decodeFunctionSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("function count: %w", err)
	}
	idxs := make([]uint32, n)
	for i := range idxs {
		idx, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("type index %d: %w", i, err)
		}
		idxs[i] = idx
	}
	return FunctionSection{TypeIndices: idxs}, nil
}

func decodeTableSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("table count: %w", err)
	}
	tables := make([]TableType, n)
	for i := range tables {
		tt, err := r.ReadTableType()
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
		tables[i] = tt
	}
	return TableSection{Tables: tables}, nil
}

func decodeMemorySection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("memory count: %w", err)
	}
	mems := make([]MemoryType, n)
	for i := range mems {
		mt, err := r.ReadMemoryType()
		if err != nil {
			return nil, fmt.Errorf("memory %d: %w", i, err)
		}
		mems[i] = mt
	}
	return MemorySection{Memories: mems}, nil
}

func decodeGlobalSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("global count: %w", err)
	}
	globals := make([]GlobalEntry, n)
	for i := range globals {
		gt, err := r.ReadGlobalType()
		if err != nil {
			return nil, fmt.Errorf("global %d type: %w", i, err)
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return nil, fmt.Errorf("global %d init: %w", i, err)
		}
		globals[i] = GlobalEntry{Type: gt, Init: init}
	}
	return GlobalSection{Globals: globals}, nil
}

func decodeExportSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("export count: %w", err)
	}
	exports := make([]Export, n)
	for i := range exports {
		name, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("export %d name: %w", i, err)
		}
		kind, err := r.ReadExternalKind()
		if err != nil {
			return nil, fmt.Errorf("export %d kind: %w", i, err)
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("export %d index: %w", i, err)
		}
		exports[i] = Export{Name: name, Kind: kind, Index: idx}
	}
	return ExportSection{Exports: exports}, nil
}

func decodeStartSection(r *Reader) (Payload, error) {
	idx, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("start func index: %w", err)
	}
	return StartSection{FuncIndex: idx}, nil
}

func decodeElementSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("element segment count: %w", err)
	}
	segs := make([]ElementSegment, n)
	for i := range segs {
		tableIdx, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("element %d table index: %w", i, err)
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return nil, fmt.Errorf("element %d offset: %w", i, err)
		}
		count, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("element %d func index count: %w", i, err)
		}
		funcs := make([]uint32, count)
		for j := range funcs {
			idx, err := r.ReadVarU32()
			if err != nil {
				return nil, fmt.Errorf("element %d func index %d: %w", i, j, err)
			}
			funcs[j] = idx
		}
		segs[i] = ElementSegment{TableIndex: tableIdx, Offset: offset, FuncIndices: funcs}
	}
	return ElementSection{Segments: segs}, nil
}

func decodeCodeSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("code entry count: %w", err)
	}
	bodies := make([]FunctionBody, n)
	for i := range bodies {
		size, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("code %d body size: %w", i, err)
		}
		sub, err := r.Sub(size)
		if err != nil {
			return nil, fmt.Errorf("code %d body: %w", i, err)
		}
		body, err := decodeFunctionBody(sub)
		if err != nil {
			return nil, fmt.Errorf("code %d: %w", i, err)
		}
		if !sub.AtEnd() {
			return nil, sub.errf(ErrSectionSizeMismatch, "%d bytes left unread in code entry %d", sub.Len(), i)
		}
		bodies[i] = body
	}
	return CodeSection{Bodies: bodies}, nil
}

// decodeFunctionBody decodes the run-length-compressed locals vector and
// keeps everything after it verbatim, per SPEC_FULL.md's explicit choice
// not to decode the full operator set.
func decodeFunctionBody(r *Reader) (FunctionBody, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return FunctionBody{}, fmt.Errorf("local entry count: %w", err)
	}
	locals := make([]LocalEntry, n)
	for i := range locals {
		count, err := r.ReadVarU32()
		if err != nil {
			return FunctionBody{}, fmt.Errorf("local entry %d count: %w", i, err)
		}
		vt, err := r.ReadValType()
		if err != nil {
			return FunctionBody{}, fmt.Errorf("local entry %d type: %w", i, err)
		}
		locals[i] = LocalEntry{Count: count, Type: vt}
	}
	code, err := r.ReadBytes(r.Len())
	if err != nil {
		return FunctionBody{}, fmt.Errorf("code bytes: %w", err)
	}
	return FunctionBody{Locals: locals, Code: code}, nil
}

func decodeDataSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("data segment count: %w", err)
	}
	segs := make([]DataSegment, n)
	for i := range segs {
		memIdx, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("data %d memory index: %w", i, err)
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return nil, fmt.Errorf("data %d offset: %w", i, err)
		}
		size, err := r.ReadVarU32()
		if err != nil {
			return nil, fmt.Errorf("data %d size: %w", i, err)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("data %d bytes: %w", i, err)
		}
		segs[i] = DataSegment{MemoryIndex: memIdx, Offset: offset, Data: data}
	}
	return DataSection{Segments: segs}, nil
}

func decodeDataCountSection(r *Reader) (Payload, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, fmt.Errorf("data count: %w", err)
	}
	return DataCountSection{Count: n}, nil
}

// decodeConstExpr decodes a constant initializer expression: zero or more
// producing operators followed by End. Grounded on
// parser.Parser.translateAbsCoreHeapType's discriminated-byte-switch idiom
// (parser/parser.go), applied here to the five opcodes legal in constant
// initializer expressions rather than heap type discriminators.
func decodeConstExpr(r *Reader) ([]ConstOperator, error) {
	var ops []ConstOperator
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("const expr opcode: %w", err)
		}
		switch op {
		case 0x41:
			v, err := r.ReadVarI32()
			if err != nil {
				return nil, fmt.Errorf("i32.const: %w", err)
			}
			ops = append(ops, ConstI32{Value: v})
		case 0x42:
			v, err := r.ReadVarI64()
			if err != nil {
				return nil, fmt.Errorf("i64.const: %w", err)
			}
			ops = append(ops, ConstI64{Value: v})
		case 0x43:
			v, err := r.ReadU32LE()
			if err != nil {
				return nil, fmt.Errorf("f32.const: %w", err)
			}
			ops = append(ops, ConstF32{Bits: v})
		case 0x44:
			v, err := r.ReadU64LE()
			if err != nil {
				return nil, fmt.Errorf("f64.const: %w", err)
			}
			ops = append(ops, ConstF64{Bits: v})
		case 0x23:
			idx, err := r.ReadVarU32()
			if err != nil {
				return nil, fmt.Errorf("global.get: %w", err)
			}
			ops = append(ops, ConstGlobalGet{Index: idx})
		case 0x0B:
			ops = append(ops, ConstEnd{})
			return ops, nil
		default:
			return nil, r.errf(ErrInvalidOpcode, "0x%02x", op)
		}
	}
}
