// Package logx configures repeat's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller) on stderr, so the
//     repeated command owns stdout
//   - File output JSON-structured
//   - Levels and sinks swappable at runtime through Service.Apply
package logx
