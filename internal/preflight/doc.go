// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and model files Argus depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure; only
//     directory failures are fatal, because cameras with file:// sources
//     and motion-only analysis work without ffmpeg or models.
//   - The CLI "argus status" command displays the same results as a
//     dependency table.
package preflight
