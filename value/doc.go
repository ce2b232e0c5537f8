// Package value converts between typed scalars and aggregates and their raw
// little-endian byte encodings.
//
// Integers use two's complement at their layout's width. Booleans are one
// byte and only 0 and 1 decode. Pointers encode their offset in the bytes
// and keep their allocation as provenance beside them.
package value
