// Package diagnostics collects host metadata for capture runs and provides
// the bounded command executor and crash dump writer used around them.
//
// The package implements three main components:
//
//   - Collector: probes each diagnostic field independently through a chain
//     of sources, each bounded by a per-field timeout. A field that cannot be
//     probed carries its fallback marker instead of failing the run.
//
//   - SafeExecutor: runs external commands with a deadline, detached stdin
//     and captured, size-limited output. Package managers and ffmpeg both go
//     through it.
//
//   - CrashDumpWriter: turns a panic at the outermost boundary into an error
//     and persists a JSON dump with the stack and a resource snapshot.
package diagnostics
