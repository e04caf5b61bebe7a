// Package value models values inspected through fdb.
//
// A Value holds the textual result fdb printed for an expression. Nothing is
// typed statically: the type, the object id and, for XML, the markup are all
// recovered from markers in that text. Children are computed lazily by
// evaluating the object's id reference ("#<id>.") and parsing the dump.
//
// Evaluation goes through a Context supplied by the owning stack frame, so
// this package never touches the command queue directly. Presentation and
// children are delivered to sinks (Node, Container) that may become
// obsolete; obsolete sinks stop further protocol traffic.
package value
