// Package viz renders scaling results for the terminal.
//
//   - [Renderer.Feasibility]: per-joint utilization of every checked constraint
//   - [Renderer.Scaling]: the emitted parameters next to the initial verdict
//   - [Renderer.Compare]: one line per robot for the same intention
//   - [SweepChart]: utilization against accel_percent, drawn with asciigraph
//
// Colors come from a [Theme]; three are built in.
package viz
