package intrinsic

// Calling conventions under which a foreign function is an intrinsic.
const (
	ABIIntrinsic         = "rust-intrinsic"
	ABIPlatformIntrinsic = "platform-intrinsic"
)

// allocatorAttrs maps allocator marker attributes to the entry point the
// marked function is evaluated as.
var allocatorAttrs = map[string]string{
	"rustc_allocator":        AllocName,
	"rustc_allocator_zeroed": AllocZeroedName,
	"rustc_deallocator":      DeallocName,
	"rustc_reallocator":      ReallocName,
}

// Recognize decides whether a function declaration binds to an intrinsic
// and returns the dispatch name it evaluates as. Declarations under an
// intrinsic ABI bind by their own name; allocator shims bind by attribute
// whatever they are called.
func (d *Dispatcher) Recognize(abi, name string, attrs []string) (string, bool) {
	for _, a := range attrs {
		if target, ok := allocatorAttrs[a]; ok {
			return target, true
		}
	}
	switch abi {
	case ABIIntrinsic, ABIPlatformIntrinsic:
		if d.Known(name) {
			return name, true
		}
	}
	return "", false
}
