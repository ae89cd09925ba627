// Package executor validates execution requests and forwards them to the
// backend, one at a time or as a batch whose items succeed or fail
// independently. Every execution is optionally summarized to a Recorder.
package executor
