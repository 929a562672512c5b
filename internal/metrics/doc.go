// Package metrics samples operational gauges into the metrics timeseries
// so status surfaces and the CLI can chart queue depth, alert volume, and
// cache effectiveness over time.
package metrics
