// Package atom reads the atom (box) structure of QuickTime-family container
// files.
//
// A QuickTime movie is a tree of atoms. Every atom starts with a 32-bit
// big-endian size and a four-character type tag; container atoms such as
// "moov" and "trak" hold further atoms in their payload, leaf atoms hold raw
// data. ParseTree walks that structure reading only the headers, so locating
// the handful of atoms that matter stays cheap even for multi-gigabyte
// movies. Individual payloads are read on demand through Tree.Payload.
package atom
