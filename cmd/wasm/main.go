//go:build js && wasm

// Command wasm exposes the emulator to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runScenario(jsonString) -> jsonString
//
// The input and output are the SimulationInput and SimulationLog JSON used by
// the CLI. Failures come back as an object with an "error" key.
package main

import (
	"context"
	"syscall/js"

	"github.com/cxd309/vehicle-emulator/internal/simulation"
)

func main() {
	js.Global().Set("runScenario", js.FuncOf(runScenario))
	select {} // keep the WASM module alive until the page is closed
}

func runScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := simulation.RunJSON(context.Background(), args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
