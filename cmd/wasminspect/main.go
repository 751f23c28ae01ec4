package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"

	"github.com/wasmkit/wasmcore/validator"
	"github.com/wasmkit/wasmcore/wasm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <module.wasm>\n", os.Args[0])
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Parsing module (%d bytes)...\n", len(data))

	sections := 0
	for payload, err := range wasm.NewParser(data).Events() {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse module: %v\n", err)
			os.Exit(1)
		}
		switch payload.(type) {
		case wasm.Version, wasm.End:
		default:
			sections++
		}
	}
	fmt.Printf("✓ Parsed %d sections\n", sections)

	result := validator.Validate(data)
	if result.Valid {
		fmt.Println("✓ Module is structurally well-formed")
	} else {
		fmt.Println("✗ Module failed validation:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wazero could not compile module: %v\n", err)
		os.Exit(1)
	}
	defer compiled.Close(ctx)

	fmt.Println("\nExported functions (per wazero):")
	for name, fn := range compiled.ExportedFunctions() {
		fmt.Printf("  %s%v -> %v\n", name, fn.ParamTypes(), fn.ResultTypes())
	}
}
