// Package scale implements the Scaling Manager: a resizable worker
// semaphore the workflow's analysis lane draws slots from, and a control
// loop that grows or shrinks it one worker at a time based on the
// recorded-segment backlog, with consecutive-breach confirmation and a
// post-resize cooldown for hysteresis.
package scale
