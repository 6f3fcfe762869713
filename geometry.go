package atlaspack

// maxSurfaceDimension is the largest width or height an allocator surface
// may have. Both engines address shelves/items/bins with 16-bit indices,
// so a surface dimension must fit in that same range.
const maxSurfaceDimension = 0xFFFF

// Size describes a width and height in pixels. A Size is empty when
// either dimension is not positive.
type Size struct {
	Width  int32
	Height int32
}

// IsEmpty reports whether the size has a non-positive width or height.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Point is a 2-D integer coordinate.
type Point struct {
	X int32
	Y int32
}

// Rectangle is an axis-aligned box described by a half-open [Min, Max)
// range: a point p lies inside the rectangle when Min.X <= p.X < Max.X
// and Min.Y <= p.Y < Max.Y.
type Rectangle struct {
	Min Point
	Max Point
}

// Size returns the rectangle's width and height.
func (r Rectangle) Size() Size {
	return Size{Width: r.Max.X - r.Min.X, Height: r.Max.Y - r.Min.Y}
}

// Allocation is the outcome of a successful Allocate call: the opaque id
// used to later deallocate the rectangle, and the placed rectangle
// itself (which may be larger than requested due to alignment and
// shelf-height bucketing).
type Allocation struct {
	ID        AllocID
	Rectangle Rectangle
}

// DebugAssertions enables the internal consistency check that
// [Allocator] runs after every successful Allocate and every Deallocate.
// [BucketedAllocator] has no such check. It's the Go stand-in for Rust's
// debug_assert!: off by default (zero runtime cost), and meant to be
// flipped on in tests or while fuzzing a sequence of Allocate/Deallocate
// calls.
var DebugAssertions = false

// Fill describes what occupies a region yielded by Allocator.Each /
// BucketedAllocator.Each.
type Fill int

const (
	// Free marks a region that is not currently allocated.
	Free Fill = iota
	// Allocated marks a region handed out by a prior Allocate call.
	Allocated
)

func (f Fill) String() string {
	if f == Allocated {
		return "allocated"
	}
	return "free"
}

// adjustSize rounds size up to the next multiple of alignment.
// alignment must be >= 1.
func adjustSize(alignment, size int32) int32 {
	rem := size % alignment
	if rem > 0 {
		size += alignment - rem
	}
	return size
}

// convertCoordinates swaps (x, y) when flipXY is set, implementing the
// vertical-shelves orientation toggle at the I/O boundary of each
// operation: shelves always run internally as horizontal strips, and
// flipXY presents them to the caller as vertical strips by swapping axes
// on the way in and back out.
func convertCoordinates(flipXY bool, x, y uint16) (uint16, uint16) {
	if flipXY {
		return y, x
	}
	return x, y
}

// bucketizeHeight rounds a requested shelf height up to a coarser
// alignment chosen from the height itself, limiting the number of
// distinct shelf heights the allocator has to search through:
//
//	0..31    -> multiple of 8
//	32..127  -> multiple of 16
//	128..511 -> multiple of 32
//	512..    -> multiple of 64
func bucketizeHeight(size uint16) uint16 {
	var alignment uint16
	switch {
	case size <= 31:
		alignment = 8
	case size <= 127:
		alignment = 16
	case size <= 511:
		alignment = 32
	default:
		alignment = 64
	}

	rem := size % alignment
	if rem > 0 {
		size += alignment - rem
	}
	return size
}
