// Package serverrun contains the long-running server entrypoint used by the
// antennad CLI: it opens the runtime, subscribes the fan-out engine to the
// note intake channel, and blocks until shutdown.
package serverrun
