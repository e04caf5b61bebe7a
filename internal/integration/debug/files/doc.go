// Package files maps fdb file ids to project files.
//
// fdb identifies source files by a numeric id per worker and prints paths
// in its own form ("/root;com/acme;Foo.as, Foo.as"). Map keeps the id and
// short-name tables built from "show files" output and resolves the short
// names fdb prints in stack frames against the project index.
package files
