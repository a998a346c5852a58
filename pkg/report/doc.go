// Package report renders command outcomes for a terminal.
//
// Human-readable progress, warnings and errors go to the error stream;
// machine-readable values (a number, a JSON document) go to the output
// stream, one per line, so scripts can consume stdout directly.
package report
