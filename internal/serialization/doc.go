// Package serialization stores sparse models in the .born container.
//
// A .born file holds a set of named sparse vectors (model parameters,
// per-class parameters, optimizer accumulators) plus a JSON header that
// describes them:
//
//	Layout:
//	  0x00  [4 bytes: Magic "BORN"]
//	  0x04  [4 bytes: Version (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: Reserved]
//	  0x10  [8 bytes: Header size (uint64 LE)]
//	  0x18  [8 bytes: Data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [Header: JSON]
//	        [Padding to a 64-byte boundary]
//	        [Data: vector records]
//
// Each vector occupies one contiguous region of the data section. A region
// is a sequence of records sorted by key:
//
//	[4 bytes: key length (uint32 LE)][key bytes][8 bytes: float64 LE]
//
// Example usage:
//
//	err := serialization.WriteFile("model.born", map[string]*sparse.Vector{
//	    "params": params,
//	}, serialization.Header{ModelType: serialization.ModelTypeLinear})
//
//	f, err := serialization.ReadFile("model.born", serialization.ReaderOptions{})
//	params := f.Vectors["params"]
package serialization
