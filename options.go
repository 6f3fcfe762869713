package atlaspack

// Options tweaks the behavior of an allocator.
type Options struct {
	// Alignment rounds each allocation's width and height up to a
	// multiple of Alignment.Width / Alignment.Height before placement.
	//
	// Default: {1, 1} (no alignment).
	Alignment Size

	// VerticalShelves makes shelves run along the X axis instead of Y,
	// by swapping (x, y) on input and output. Default: false.
	VerticalShelves bool

	// NumColumns splits the surface into this many equal-width vertical
	// columns, filled left-to-right one at a time. Only BucketedAllocator
	// uses it for placement; both constructors still reject values below
	// 1. Default: 1.
	NumColumns int32
}

// DefaultOptions returns the default allocator options: no alignment, no
// vertical-shelves flip, and a single column.
func DefaultOptions() Options {
	return Options{
		Alignment:       Size{Width: 1, Height: 1},
		VerticalShelves: false,
		NumColumns:      1,
	}
}

// Validate checks that the options (together with the surface size they
// will be used with) are usable, returning an *OptionsError describing
// the first problem found.
func (o Options) Validate(size Size) error {
	if size.Width <= 0 {
		return &OptionsError{Field: "Size.Width", Reason: "must be positive"}
	}
	if size.Height <= 0 {
		return &OptionsError{Field: "Size.Height", Reason: "must be positive"}
	}
	if size.Width > maxSurfaceDimension {
		return &OptionsError{Field: "Size.Width", Reason: "must be at most 65535"}
	}
	if size.Height > maxSurfaceDimension {
		return &OptionsError{Field: "Size.Height", Reason: "must be at most 65535"}
	}
	if o.Alignment.Width < 1 {
		return &OptionsError{Field: "Alignment.Width", Reason: "must be at least 1"}
	}
	if o.Alignment.Height < 1 {
		return &OptionsError{Field: "Alignment.Height", Reason: "must be at least 1"}
	}
	if o.NumColumns < 1 {
		return &OptionsError{Field: "NumColumns", Reason: "must be at least 1"}
	}
	return nil
}
