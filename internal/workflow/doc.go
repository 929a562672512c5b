// Package workflow drives recorded video segments through the processing
// pipeline. A manager owns two lanes: the analysis lane runs frame analysis
// with a resizable worker pool, and the post lane serially evaluates rules
// and dispatches alerts. Each lane claims the oldest eligible segment,
// marks it processing, executes the stage handler under a heartbeat, and
// advances the segment to the stage's done status. Failures roll the
// segment to failed or review depending on the error class, and stale
// heartbeats return segments to the start of their stage so work is never
// stranded by a crash.
package workflow
