package memory

import (
	"fmt"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
)

// AllocID identifies an allocation within one Arena. Zero is never a valid
// id; a pointer with Alloc == 0 has no provenance.
type AllocID uint32

// Pointer is an (allocation, byte offset) pair. It is never a numeric
// address. Offset may be transiently outside the allocation; every access
// checks it.
type Pointer struct {
	Alloc  AllocID
	Offset int64
}

// Null is the pointer without provenance at offset zero.
var Null = Pointer{}

// IsNull reports whether p has no provenance.
func (p Pointer) IsNull() bool {
	return p.Alloc == 0
}

// Add returns p moved by delta bytes, without any bounds check.
func (p Pointer) Add(delta int64) Pointer {
	return Pointer{Alloc: p.Alloc, Offset: p.Offset + delta}
}

func (p Pointer) String() string {
	if p.Alloc == 0 {
		return fmt.Sprintf("0x%x", p.Offset)
	}
	return fmt.Sprintf("alloc%d+%d", p.Alloc, p.Offset)
}

// Provenance maps byte offsets to the allocation a pointer stored at that
// offset refers to. Offsets are relative to whatever the map describes: an
// allocation, a value, or a read window.
type Provenance map[int64]AllocID

// Allocation is a simulated heap region.
type Allocation struct {
	buf    []byte
	prov   Provenance
	size   uint64
	align  uint64
	id     AllocID
	live   bool
	static bool
}

// ID returns the allocation's identity.
func (a *Allocation) ID() AllocID { return a.id }

// Size returns the declared size in bytes.
func (a *Allocation) Size() uint64 { return a.size }

// Align returns the declared alignment.
func (a *Allocation) Align() uint64 { return a.align }

// Live reports whether the allocation has not been deallocated.
func (a *Allocation) Live() bool { return a.live }

// Static reports whether the allocation backs a literal and may not be
// deallocated.
func (a *Allocation) Static() bool { return a.static }

// Arena owns every allocation of one constant evaluation. It is not safe
// for concurrent use; each evaluation gets its own.
type Arena struct {
	allocs []*Allocation
	bytes  uint64
	limit  uint64
}

// MaxBytes is the ceiling on live allocation bytes for an arena created
// without a limit.
const MaxBytes = 1 << 30

// NewArena creates an empty arena. limit caps the total number of bytes
// held by live allocations; 0 means MaxBytes.
func NewArena(limit uint64) *Arena {
	if limit == 0 {
		limit = MaxBytes
	}
	return &Arena{
		allocs: make([]*Allocation, 0, 16),
		limit:  limit,
	}
}

// Allocate creates a region of size bytes. Its contents are unspecified;
// callers must write before reading.
func (m *Arena) Allocate(size, align uint64) (Pointer, error) {
	a, err := m.create(size, align)
	if err != nil {
		return Null, err
	}
	return Pointer{Alloc: a.id}, nil
}

// AllocateZeroed creates a zero-filled region of size bytes.
func (m *Arena) AllocateZeroed(size, align uint64) (Pointer, error) {
	a, err := m.create(size, align)
	if err != nil {
		return Null, err
	}
	clear(a.buf)
	return Pointer{Alloc: a.id}, nil
}

// AllocateStatic creates a region initialized with data, as backing for a
// reference or array literal. Static regions cannot be deallocated.
func (m *Arena) AllocateStatic(data []byte, prov Provenance, align uint64) (Pointer, error) {
	a, err := m.create(uint64(len(data)), align)
	if err != nil {
		return Null, err
	}
	a.static = true
	copy(a.buf, data)
	for off, id := range prov {
		a.prov[off] = id
	}
	return Pointer{Alloc: a.id}, nil
}

func (m *Arena) create(size, align uint64) (*Allocation, error) {
	if !layout.IsPowerOfTwo(align) {
		return nil, errors.InvalidAlignment(errors.PhaseMemory, align)
	}
	if size > m.limit || m.bytes > m.limit-size {
		return nil, errors.New(errors.PhaseMemory, errors.KindBudgetExceeded).
			Detail("allocating %d bytes exceeds the arena limit of %d", size, m.limit).
			Value(size).
			Build()
	}

	a := &Allocation{
		id:    AllocID(len(m.allocs) + 1),
		buf:   make([]byte, size),
		prov:  make(Provenance),
		size:  size,
		align: align,
		live:  true,
	}
	m.allocs = append(m.allocs, a)
	m.bytes += size
	return a, nil
}

// Deallocate kills the allocation p points to. p must point at the start of
// the allocation and size/align must match the values it was created with.
func (m *Arena) Deallocate(p Pointer, size, align uint64) error {
	a, err := m.deallocatable(p, size, align)
	if err != nil {
		return err
	}

	a.live = false
	a.buf = nil
	a.prov = nil
	m.bytes -= a.size
	return nil
}

// CheckDeallocate reports the error Deallocate would return, without
// changing anything.
func (m *Arena) CheckDeallocate(p Pointer, size, align uint64) error {
	_, err := m.deallocatable(p, size, align)
	return err
}

func (m *Arena) deallocatable(p Pointer, size, align uint64) (*Allocation, error) {
	a, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if a.static {
		return nil, errors.InvalidPointer(errors.PhaseMemory,
			fmt.Sprintf("allocation #%d backs a literal and cannot be deallocated", a.id))
	}
	if p.Offset != 0 {
		return nil, errors.InvalidPointer(errors.PhaseMemory,
			fmt.Sprintf("deallocating %s which is not the start of its allocation", p))
	}
	if size != a.size || align != a.align {
		return nil, errors.SizeAlignMismatch(errors.PhaseMemory, size, align, a.size, a.align)
	}
	return a, nil
}

// Allocation returns the allocation p refers to, live or not.
func (m *Arena) Allocation(p Pointer) (*Allocation, error) {
	if p.Alloc == 0 || int(p.Alloc) > len(m.allocs) {
		return nil, errors.InvalidPointer(errors.PhaseMemory,
			fmt.Sprintf("pointer %s does not refer to an allocation", p))
	}
	return m.allocs[p.Alloc-1], nil
}

// lookup resolves p to a live allocation.
func (m *Arena) lookup(p Pointer) (*Allocation, error) {
	a, err := m.Allocation(p)
	if err != nil {
		return nil, err
	}
	if !a.live {
		return nil, errors.UseAfterFree(errors.PhaseMemory, uint32(a.id))
	}
	return a, nil
}

// CheckInBounds verifies that p refers to a live allocation and lies within
// [0, size]. One-past-the-end is accepted.
func (m *Arena) CheckInBounds(p Pointer) error {
	a, err := m.lookup(p)
	if err != nil {
		return err
	}
	if p.Offset < 0 || uint64(p.Offset) > a.size {
		return errors.OutOfBounds(errors.PhaseMemory, p.Offset, 0, a.size)
	}
	return nil
}

// span resolves an access of n bytes at p.
func (m *Arena) span(p Pointer, n uint64) (*Allocation, error) {
	a, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if p.Offset < 0 || uint64(p.Offset) > a.size || n > a.size-uint64(p.Offset) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, p.Offset, n, a.size)
	}
	return a, nil
}

// Read returns a copy of n bytes at p.
func (m *Arena) Read(p Pointer, n uint64) ([]byte, error) {
	data, _, err := m.ReadWithProvenance(p, n)
	return data, err
}

// ReadWithProvenance returns a copy of n bytes at p together with the
// provenance of any pointers stored in them, keyed relative to p.
func (m *Arena) ReadWithProvenance(p Pointer, n uint64) ([]byte, Provenance, error) {
	a, err := m.span(p, n)
	if err != nil {
		return nil, nil, err
	}

	out := make([]byte, n)
	copy(out, a.buf[p.Offset:uint64(p.Offset)+n])

	var prov Provenance
	end := p.Offset + int64(n)
	for off, id := range a.prov {
		if off >= p.Offset && off < end {
			if prov == nil {
				prov = make(Provenance)
			}
			prov[off-p.Offset] = id
		}
	}
	return out, prov, nil
}

// Write stores data at p. Any pointer provenance overlapping the written
// range is erased.
func (m *Arena) Write(p Pointer, data []byte) error {
	return m.WriteWithProvenance(p, data, nil)
}

// WriteWithProvenance stores data at p and records prov (keyed relative to
// p) for the pointers it contains.
func (m *Arena) WriteWithProvenance(p Pointer, data []byte, prov Provenance) error {
	n := uint64(len(data))
	a, err := m.span(p, n)
	if err != nil {
		return err
	}

	copy(a.buf[p.Offset:], data)
	a.clearProvenance(p.Offset, int64(n))
	for off, id := range prov {
		a.prov[p.Offset+off] = id
	}
	return nil
}

// Fill sets n bytes at p to b.
func (m *Arena) Fill(p Pointer, b byte, n uint64) error {
	a, err := m.span(p, n)
	if err != nil {
		return err
	}
	region := a.buf[p.Offset : uint64(p.Offset)+n]
	for i := range region {
		region[i] = b
	}
	a.clearProvenance(p.Offset, int64(n))
	return nil
}

// Copy moves n bytes from src to dst. Overlapping ranges are handled as if
// the source were first copied to a temporary buffer.
func (m *Arena) Copy(src, dst Pointer, n uint64) error {
	data, prov, err := m.ReadWithProvenance(src, n)
	if err != nil {
		return err
	}
	return m.WriteWithProvenance(dst, data, prov)
}

// Live returns the number of live allocations.
func (m *Arena) Live() int {
	n := 0
	for _, a := range m.allocs {
		if a.live {
			n++
		}
	}
	return n
}

// clearProvenance drops pointer provenance for any pointer overlapping
// [off, off+n).
func (a *Allocation) clearProvenance(off, n int64) {
	for start := range a.prov {
		if start < off+n && start+layout.PointerSize > off {
			delete(a.prov, start)
		}
	}
}
