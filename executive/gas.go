package executive

// wasmMagic is the four-byte header ("\0asm") every Wasm module begins
// with. Only maybeInjectGasMeter checks for it; the VM engine is not
// selected from it.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// maybeInjectGasMeter is the hook, called on every create frame, where a
// gas-metering pass over a freshly deployed Wasm module would run before it
// is handed to the VM (the role original_source/tools/inject_meter.cpp
// plays in the original pipeline). It performs no instrumentation: it
// returns `code` unchanged in every case, Wasm module or not.
func maybeInjectGasMeter(code []byte, wasmEnabled bool) []byte {
	if !wasmEnabled || len(code) < len(wasmMagic) {
		return code
	}
	for i, b := range wasmMagic {
		if code[i] != b {
			return code
		}
	}
	return code
}
