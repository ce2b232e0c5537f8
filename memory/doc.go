// Package memory implements the simulated heap of one constant evaluation.
//
// Pointers are (allocation id, offset) pairs rather than addresses, so
// bounds and liveness checks are structural:
//
//	arena := memory.NewArena(0)
//	p, _ := arena.Allocate(4, 1)
//	_ = arena.Write(p.Add(1), []byte{32})
//	b, err := arena.Read(p.Add(4), 1) // out_of_bounds
//
// Allocations keep per-offset pointer provenance so that pointers stored
// in memory can be loaded back and dereferenced.
package memory
