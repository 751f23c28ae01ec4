package validator

import (
	"strings"
	"testing"
)

type validateCase struct {
	name          string
	data          []byte
	wantValid     bool
	wantErrSubstr string
}

func runValidateCases(t *testing.T, cases []validateCase) {
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := Validate(c.data)
			if result.Valid != c.wantValid {
				t.Fatalf("got Valid=%v (errors: %v), want Valid=%v", result.Valid, result.Errors, c.wantValid)
			}
			if c.wantErrSubstr != "" {
				found := false
				for _, e := range result.Errors {
					if strings.Contains(e, c.wantErrSubstr) {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("errors %v do not contain substring %q", result.Errors, c.wantErrSubstr)
				}
			}
		})
	}
}

func TestValidateScenarios(t *testing.T) {
	runValidateCases(t, []validateCase{
		{
			name: "S1 minimal module",
			data: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
			},
			wantValid: true,
		},
		{
			name: "S2 empty type section",
			data: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
			},
			wantValid: true,
		},
		{
			name: "S5 bad magic",
			data: []byte{
				0x00, 0x62, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
			},
			wantValid:     false,
			wantErrSubstr: "magic",
		},
		{
			name: "S6 function/code count mismatch",
			data: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
				0x03, 0x03, 0x02, 0x00, 0x00,
				0x0A, 0x04, 0x01, 0x02, 0x00, 0x0B,
			},
			wantValid:     false,
			wantErrSubstr: "2 functions, 1 code entries",
		},
		{
			name: "S7 duplicate export",
			data: []byte{
				0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
				0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
				0x07, 0x09, 0x02, 0x01, 0x61, 0x00, 0x00, 0x01, 0x61, 0x00, 0x00,
			},
			wantValid:     false,
			wantErrSubstr: `duplicate export name "a"`,
		},
	})
}

func TestValidateDuplicateSingletonSection(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "duplicate section") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention a duplicate section", result.Errors)
	}
}

func TestValidateMultipleCustomSectionsAllowed(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x00, 0x02, 0x01, 0x61, // custom "a", no payload
		0x00, 0x02, 0x01, 0x62, // custom "b", no payload
	}
	result := Validate(data)
	if !result.Valid {
		t.Fatalf("expected valid (multiple custom sections allowed), got errors: %v", result.Errors)
	}
}

func TestValidateMemoryLimitsOutOfRange(t *testing.T) {
	// One memory: flags=1 (has max), min=2, max=1 — max < min.
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x04, 0x01, 0x01, 0x02, 0x01,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "less than min") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention limits ordering", result.Errors)
	}
}

func TestValidateTableElemTypeMustBeReference(t *testing.T) {
	// One table whose element type is i32 (0x7F) instead of a reference type.
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x04, 0x04, 0x01, 0x7F, 0x00, 0x00,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "not a reference type") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention the table element type", result.Errors)
	}
}

func TestValidateImportedTableElemTypeMustBeReference(t *testing.T) {
	// Import "m"."t" as a table whose element type is i32 (0x7F).
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x02, 0x09, 0x01, 0x01, 0x6D, 0x01, 0x74, 0x01, 0x7F, 0x00, 0x00,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "not a reference type") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention the imported table element type", result.Errors)
	}
}

func TestValidateImportedMemoryLimitsOutOfRange(t *testing.T) {
	// Import "m"."f" as a memory with no max and min = 65537, one page over cap.
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x02, 0x0A, 0x01, 0x01, 0x6D, 0x01, 0x66, 0x02, 0x00, 0x81, 0x80, 0x04,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "exceeds page cap") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention the imported memory's page cap", result.Errors)
	}
}

func TestValidateMissingCodeSection(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "no code section") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention a missing code section", result.Errors)
	}
}

func TestValidateDataCountMismatch(t *testing.T) {
	// DataCountSection declares 2, but the Data section has 0 segments.
	data := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x0C, 0x01, 0x02,
		0x0B, 0x01, 0x00,
	}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid, got valid")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "data count mismatch") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors %v do not mention a data count mismatch", result.Errors)
	}
}

func TestValidateParseFaultStopsFold(t *testing.T) {
	data := []byte{0x00, 0x62, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	result := Validate(data)
	if result.Valid {
		t.Fatalf("expected invalid")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want exactly 1 (fold stops at first fault): %v", len(result.Errors), result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], "parse error:") {
		t.Fatalf("got %q, want a parse error prefix", result.Errors[0])
	}
}
