// Package ingest captures camera streams into .mjpeg segment files. One
// handler per enabled camera connects its source (ffmpeg for network
// streams, directory replay for file:// urls), feeds the latest frame to
// the snapshot cache, and appends frames to rolling segment files that
// enter the analysis pipeline as recorded rows. Full write buffers drop
// the incoming frame rather than stall capture, and dead streams
// reconnect with exponential backoff before the camera is marked
// degraded.
package ingest
