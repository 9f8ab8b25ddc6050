// Package stdio provides the line-delimited message transport used by the
// server: one JSON message per line on the input stream, one per line on the
// output stream.
package stdio
