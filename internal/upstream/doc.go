// Package upstream is the gateway's only path to the remote execution
// backend. Every failed call leaves this package as an *Error of exactly one
// Kind, so callers never inspect transport errors themselves.
package upstream
