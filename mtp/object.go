package mtp

// Handle identifies an object within a storage. Handle 0 is a wire
// sentinel meaning "the root of the storage" when used as a parent
// parameter; it never names a real object. RootHandle (0xFFFFFFFF) is the
// value GetObjectHandles/GetObjectInfo use to mean "the storage's own
// root association" when a caller asks for it explicitly.
type Handle uint32

const RootHandle Handle = 0xFFFFFFFF

// HandleAllocator hands out monotonically increasing handles, skipping
// zero (the wire sentinel for "no object"/"root") on wraparound. Grounded
// on original_source/src/mtp_object.hpp's static new_handle(), but kept as
// a small stateful type instead of a package-level static; the storage
// package hands one shared allocator to every Storage so handles stay
// unique across storages.
type HandleAllocator struct {
	next uint32
}

// NewHandleAllocator returns an allocator whose first handle is 1.
func NewHandleAllocator() *HandleAllocator {
	return &HandleAllocator{next: 1}
}

// Next returns the next handle, skipping 0 on wraparound.
func (h *HandleAllocator) Next() Handle {
	v := h.next
	if v == 0 {
		v = 1
	}
	h.next = v + 1
	return Handle(v)
}

// Object is a single file or directory known to a Storage. Object graphs
// are stored as a parent-handle index rather than parent pointers (an
// arena keyed by Handle), per spec.md §9's redesign note: a Go map keeps
// the arena trivially safe to mutate (DeleteObject, MoveObject) without
// invalidating any other Object's reference to its parent.
type Object struct {
	Handle       Handle
	ParentHandle Handle // RootHandle if the object lives at the storage root
	Path         string // absolute path on the backing filesystem
	Name         string // base name, without any trailing slash
	Format       ObjectFormatCode
	Size         int64 // cached file size; undefined for associations
}

// IsAssociation reports whether o represents a directory.
func (o *Object) IsAssociation() bool {
	return o.Format == OFC_Association
}
