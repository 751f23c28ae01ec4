// Package validator checks module-level structural well-formedness by
// folding over the wasm package's event stream. It never re-decodes bytes
// itself; every check operates on the already-decoded Payload values.
package validator

import (
	"fmt"

	"github.com/wasmkit/wasmcore/wasm"
)

// maxTypeArity bounds the number of params/results a FuncType may declare
// in a validated module, per the sanity cap named in SPEC_FULL.md §3.
const maxTypeArity = 1000

// Result is the outcome of validating one module: whether it is
// structurally well-formed, and the ordered list of findings that say why
// not. An empty Errors slice with Valid true means no findings were
// raised.
type Result struct {
	Valid  bool
	Errors []string
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// state accumulates the fold over a single module's event stream:
// presence flags for the singleton sections, running counts needed for
// function/code parity and the two multiple-memory/table checks, and the
// export name set used for duplicate detection.
type state struct {
	seenSection  map[wasm.SectionID]bool
	exportNames  map[string]bool
	functionSec  *wasm.FunctionSection
	codeSec      *wasm.CodeSection
	memorySec    *wasm.MemorySection
	tableSec     *wasm.TableSection
	importMemory int
	importTable  int
	dataSec      *wasm.DataSection
	dataCountSec *wasm.DataCountSection
	elementSec   *wasm.ElementSection
}

func newState() *state {
	return &state{
		seenSection: make(map[wasm.SectionID]bool),
		exportNames: make(map[string]bool),
	}
}

// Validate parses data with wasm.NewParser and folds every emitted event
// into a Result. A parse fault is recorded as a single "parse error: ..."
// finding and stops the fold, matching the distilled spec's ParseError
// finding: no continuation after a fault.
func Validate(data []byte) Result {
	result := Result{Valid: true}
	st := newState()

	for payload, err := range wasm.NewParser(data).Events() {
		if err != nil {
			result.fail("parse error: %s", err)
			return result
		}
		visit(&result, st, payload)
	}

	checkFunctionCodeParity(&result, st)
	checkDataCount(&result, st)
	return result
}

func visit(result *Result, st *state, payload wasm.Payload) {
	switch p := payload.(type) {
	case wasm.Version, wasm.End:
		// bookends carry no structural content to check
	case wasm.CustomSection:
		// custom sections are exempt from the singleton-section check;
		// a module may carry any number of them
	case wasm.TypeSection:
		checkSingleton(result, st, wasm.SectionType)
		checkTypeArity(result, p)
	case wasm.ImportSection:
		checkSingleton(result, st, wasm.SectionImport)
		checkImports(result, st, p)
	case wasm.FunctionSection:
		checkSingleton(result, st, wasm.SectionFunction)
		st.functionSec = &p
	case wasm.TableSection:
		checkSingleton(result, st, wasm.SectionTable)
		checkLimitsVec(result, "table", tableLimitsOf(p.Tables))
		checkTableElemTypes(result, "table", p.Tables)
		st.tableSec = &p
	case wasm.MemorySection:
		checkSingleton(result, st, wasm.SectionMemory)
		checkLimitsVec(result, "memory", memoryLimitsOf(p.Memories))
		st.memorySec = &p
	case wasm.GlobalSection:
		checkSingleton(result, st, wasm.SectionGlobal)
	case wasm.ExportSection:
		checkSingleton(result, st, wasm.SectionExport)
		checkExportNames(result, st, p)
	case wasm.StartSection:
		checkSingleton(result, st, wasm.SectionStart)
	case wasm.ElementSection:
		checkSingleton(result, st, wasm.SectionElement)
		st.elementSec = &p
	case wasm.CodeSection:
		checkSingleton(result, st, wasm.SectionCode)
		st.codeSec = &p
	case wasm.DataSection:
		checkSingleton(result, st, wasm.SectionData)
		st.dataSec = &p
	case wasm.DataCountSection:
		checkSingleton(result, st, wasm.SectionDataCount)
		st.dataCountSec = &p
	}
}

func checkSingleton(result *Result, st *state, id wasm.SectionID) {
	if st.seenSection[id] {
		result.fail("duplicate section id %d", id)
		return
	}
	st.seenSection[id] = true
}

func checkTypeArity(result *Result, ts wasm.TypeSection) {
	for i, ft := range ts.Types {
		if len(ft.Params) > maxTypeArity || len(ft.Results) > maxTypeArity {
			result.fail("type %d: arity too large (%d params, %d results)", i, len(ft.Params), len(ft.Results))
		}
	}
}

// checkImports tallies imported memory/table counts (for the
// multiple-memory/table checks in checkDataCount) and, per spec.md §4.1's
// "not enforced at decode, flagged by validator" directive, applies the
// same Limits and table-element-type checks imported descriptors are
// subject to that own-section declarations already receive.
func checkImports(result *Result, st *state, is wasm.ImportSection) {
	for i, imp := range is.Imports {
		switch desc := imp.Desc.(type) {
		case wasm.ImportMemory:
			st.importMemory++
			checkLimitsVec(result, fmt.Sprintf("import %d memory", i), []wasm.Limits{desc.Type.Limits})
		case wasm.ImportTable:
			st.importTable++
			checkLimitsVec(result, fmt.Sprintf("import %d table", i), []wasm.Limits{desc.Type.Limits})
			checkTableElemTypes(result, fmt.Sprintf("import %d table", i), []wasm.TableType{desc.Type})
		}
	}
}

// checkTableElemTypes flags any table whose element type is not a
// reference type (funcref/externref), per spec.md §4.1: decoding itself
// does not reject a non-reference element type, so the validator must.
func checkTableElemTypes(result *Result, what string, tables []wasm.TableType) {
	for i, t := range tables {
		if !t.ElemType.IsRefType() {
			result.fail("%s %d: element type %s is not a reference type", what, i, t.ElemType)
		}
	}
}

func tableLimitsOf(tables []wasm.TableType) []wasm.Limits {
	out := make([]wasm.Limits, len(tables))
	for i, t := range tables {
		out[i] = t.Limits
	}
	return out
}

func memoryLimitsOf(mems []wasm.MemoryType) []wasm.Limits {
	out := make([]wasm.Limits, len(mems))
	for i, m := range mems {
		out[i] = m.Limits
	}
	return out
}

func checkLimitsVec(result *Result, what string, limits []wasm.Limits) {
	for i, l := range limits {
		if l.HasMax && l.Max < l.Min {
			result.fail("%s %d: limits max %d less than min %d", what, i, l.Max, l.Min)
		}
		if l.Min > wasm.MemoryPageCap {
			result.fail("%s %d: min %d exceeds page cap %d", what, i, l.Min, wasm.MemoryPageCap)
		}
		if l.HasMax && l.Max > wasm.MemoryPageCap {
			result.fail("%s %d: max %d exceeds page cap %d", what, i, l.Max, wasm.MemoryPageCap)
		}
	}
}

func checkExportNames(result *Result, st *state, es wasm.ExportSection) {
	for _, exp := range es.Exports {
		if st.exportNames[exp.Name] {
			result.fail("duplicate export name %q", exp.Name)
			continue
		}
		st.exportNames[exp.Name] = true
	}
}

func checkFunctionCodeParity(result *Result, st *state) {
	funcCount := 0
	if st.functionSec != nil {
		funcCount = len(st.functionSec.TypeIndices)
	}
	codeCount := 0
	if st.codeSec != nil {
		codeCount = len(st.codeSec.Bodies)
	}
	switch {
	case st.functionSec != nil && st.codeSec == nil:
		result.fail("function section present with %d entries but no code section", funcCount)
	case st.codeSec != nil && st.functionSec == nil:
		result.fail("code section present with %d entries but no function section", codeCount)
	case st.functionSec != nil && st.codeSec != nil && funcCount != codeCount:
		result.fail("function/code count mismatch: %d functions, %d code entries", funcCount, codeCount)
	}
}

// checkDataCount applies the two NEW supplemental checks from SPEC_FULL.md
// §4.3: an active data or element segment referencing a non-zero memory or
// table index when the module declares at most one memory/table (between
// its own section and imports) is flagged, and a present DataCountSection
// whose count disagrees with the actual number of data segments is
// flagged.
func checkDataCount(result *Result, st *state) {
	memoryCount := st.importMemory
	if st.memorySec != nil {
		memoryCount += len(st.memorySec.Memories)
	}
	tableCount := st.importTable
	if st.tableSec != nil {
		tableCount += len(st.tableSec.Tables)
	}
	if st.dataSec != nil {
		for i, seg := range st.dataSec.Segments {
			if seg.MemoryIndex != 0 && memoryCount <= 1 {
				result.fail("data segment %d: memory index %d unsupported with %d declared memories", i, seg.MemoryIndex, memoryCount)
			}
		}
	}
	if st.elementSec != nil {
		for i, seg := range st.elementSec.Segments {
			if seg.TableIndex != 0 && tableCount <= 1 {
				result.fail("element segment %d: table index %d unsupported with %d declared tables", i, seg.TableIndex, tableCount)
			}
		}
	}

	if st.dataCountSec == nil {
		return
	}
	actual := uint32(0)
	if st.dataSec != nil {
		actual = uint32(len(st.dataSec.Segments))
	}
	if st.dataCountSec.Count != actual {
		result.fail("data count mismatch: declared %d, found %d", st.dataCountSec.Count, actual)
	}
}

