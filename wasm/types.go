package wasm

import "fmt"

// ValType is a WebAssembly value type, encoded as its single-byte tag.
type ValType byte

const (
	ValI32       ValType = 0x7F
	ValI64       ValType = 0x7E
	ValF32       ValType = 0x7D
	ValF64       ValType = 0x7C
	ValV128      ValType = 0x7B
	ValFuncRef   ValType = 0x70
	ValExternRef ValType = 0x6F
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

// IsRefType reports whether v is one of the two reference types.
func (v ValType) IsRefType() bool {
	return v == ValFuncRef || v == ValExternRef
}

// ExternalKind tags the four kinds of importable/exportable definitions.
type ExternalKind byte

const (
	KindFunction ExternalKind = 0
	KindTable    ExternalKind = 1
	KindMemory   ExternalKind = 2
	KindGlobal   ExternalKind = 3
)

func (k ExternalKind) String() string {
	switch k {
	case KindFunction:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// MemoryPageCap is the maximum number of 64KiB pages a memory or table's
// Limits may declare, per the MVP page-space cap (4 GiB of address space).
const MemoryPageCap = 65536

// Limits bounds a table or memory: a required minimum and an optional
// maximum, following the teacher's wasm.Limits shape (HasMax flag rather
// than a pointer) from wasm/builder.go.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// FuncType is a function signature: ordered parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// TableType describes a table's element type and size limits.
type TableType struct {
	ElemType ValType
	Limits   Limits
}

// MemoryType describes a linear memory's size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's content type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// BlockType is a sealed variant: Empty, a single value type, or a type
// index into the Type section (used by block/loop/if instructions; decoded
// here only as a reusable grammar fragment, since function body
// instructions themselves are not decoded by this package).
type BlockType interface {
	isBlockType()
}

type BlockTypeEmpty struct{}

func (BlockTypeEmpty) isBlockType() {}

type BlockTypeValue struct {
	Type ValType
}

func (BlockTypeValue) isBlockType() {}

type BlockTypeIndex struct {
	TypeIndex uint32
}

func (BlockTypeIndex) isBlockType() {}

// MemArg is the (align, offset) pair attached to every memory instruction.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// ImportDesc is a sealed variant over the four kind-dispatched import
// descriptor shapes. Decoding always dispatches on the kind byte rather
// than uniformly reading a var-u32, per the Open Question resolution in
// SPEC_FULL.md §9.
type ImportDesc interface {
	isImportDesc()
	Kind() ExternalKind
}

type ImportFunc struct {
	TypeIndex uint32
}

func (ImportFunc) isImportDesc()      {}
func (ImportFunc) Kind() ExternalKind { return KindFunction }

type ImportTable struct {
	Type TableType
}

func (ImportTable) isImportDesc()      {}
func (ImportTable) Kind() ExternalKind { return KindTable }

type ImportMemory struct {
	Type MemoryType
}

func (ImportMemory) isImportDesc()      {}
func (ImportMemory) Kind() ExternalKind { return KindMemory }

type ImportGlobal struct {
	Type GlobalType
}

func (ImportGlobal) isImportDesc()      {}
func (ImportGlobal) Kind() ExternalKind { return KindGlobal }

// Import is one entry of the Import section.
type Import struct {
	Module string
	Field  string
	Desc   ImportDesc
}

// Export is one entry of the Export section.
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// ConstOperator is a sealed variant over the operators legal inside a
// constant initializer expression (globals, element offsets, data
// offsets). ConstEnd always terminates the sequence.
type ConstOperator interface {
	isConstOperator()
}

type ConstI32 struct{ Value int32 }

func (ConstI32) isConstOperator() {}

type ConstI64 struct{ Value int64 }

func (ConstI64) isConstOperator() {}

type ConstF32 struct{ Bits uint32 }

func (ConstF32) isConstOperator() {}

type ConstF64 struct{ Bits uint64 }

func (ConstF64) isConstOperator() {}

type ConstGlobalGet struct{ Index uint32 }

func (ConstGlobalGet) isConstOperator() {}

type ConstEnd struct{}

func (ConstEnd) isConstOperator() {}

// GlobalEntry is one entry of the Global section.
type GlobalEntry struct {
	Type GlobalType
	Init []ConstOperator
}

// ElementSegment is one entry of the Element section (MVP active-segment
// form: a table index, an offset initializer, and a vector of function
// indices).
type ElementSegment struct {
	TableIndex  uint32
	Offset      []ConstOperator
	FuncIndices []uint32
}

// DataSegment is one entry of the Data section.
type DataSegment struct {
	MemoryIndex uint32
	Offset      []ConstOperator
	Data        []byte
}

// LocalEntry is one run-length-compressed local declaration in a function
// body: Count locals of the same Type.
type LocalEntry struct {
	Count uint32
	Type  ValType
}

// FunctionBody is one entry of the Code section: its locals plus the
// uninterpreted instruction bytes, preserved verbatim so a later consumer
// can add instruction-level decoding without this package's involvement.
type FunctionBody struct {
	Locals []LocalEntry
	Code   []byte
}
