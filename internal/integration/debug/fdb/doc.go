// Package fdb implements the wire layer of the fdb command-line debugger
// protocol.
//
// fdb speaks unframed text over its standard streams. A response ends when
// the interactive prompt "(fdb) " is printed, when a yes/no question
// "(y or n) " is asked, or, while the player is connecting, when one of the
// connection notices appears. Nothing pairs a command with its response
// except ordering, so the package provides:
//
//   - Scanner, a pull-based tokenizer that cuts buffered text at markers
//   - Reader, which pumps a subprocess stream into a Scanner
//   - LineIterator and Classify for structural scanning of a response
//   - Command, a closed set of command kinds with their run-state contract
//   - Queue, the blocking double-ended command queue
//
// Dispatching lives in the parent debug package.
package fdb
