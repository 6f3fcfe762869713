package atlaspack

// Bucketed-engine capacity caps, mirroring the AllocID bit layout in
// id.go: a bin index must fit in 12 bits, a per-bin item counter in 12
// bits, and the shelf count is capped by the 16-bit dense index used to
// address shelves internally.
const (
	maxItemsPerBin uint16 = (1 << bucketedItemBits) - 1
	maxBinCount           = (1 << bucketedBinBits) - 1
	maxShelfCount         = 0xFFFF
)

type binIndex uint16

const noBin binIndex = 0xFFFF

type shelfRecB struct {
	x, y, height, binWidth uint16
	firstBin               binIndex
}

type binRec struct {
	x, freeSpace uint16
	next         binIndex

	// refcount is the number of live items in the bin; the bin is
	// reclaimable once it drops to zero.
	refcount uint16
	// itemCount never decreases while the bin is live: it only mints
	// unique per-item ids within the bin's current generation.
	itemCount  uint16
	shelf      uint16
	generation uint8
}

// BucketedAllocator is a shelf-packing dynamic atlas allocator that
// groups allocations into fixed-width bins stacked on shelves of
// bucketed heights, and reclaims space only when a whole bin's
// reference count drops to zero.
//
// Individual items are not tracked — only the bin-level lifetime is —
// which suits glyph atlases and similar workloads with many small,
// similarly sized, and similarly long-lived items. For heterogeneous or
// individually long-lived items, see [Allocator].
type BucketedAllocator struct {
	shelves []shelfRecB
	bins    []binRec

	availableHeight uint16
	width, height   uint16

	firstUnallocatedBin binIndex

	flipXY    bool
	alignment Size

	currentColumn, columnWidth, numColumns uint16
}

// NewBucketed creates a bucketed allocator for the given surface size
// with default options.
func NewBucketed(size Size) (*BucketedAllocator, error) {
	return NewBucketedWithOptions(size, DefaultOptions())
}

// NewBucketedWithOptions creates a bucketed allocator for the given
// surface size with the provided options.
func NewBucketedWithOptions(size Size, opts Options) (*BucketedAllocator, error) {
	if err := opts.Validate(size); err != nil {
		return nil, err
	}

	width, height, shelfAlignment := size.Width, size.Height, opts.Alignment.Width
	if opts.VerticalShelves {
		width, height, shelfAlignment = size.Height, size.Width, opts.Alignment.Height
	}

	columnWidth := width / opts.NumColumns
	columnWidth -= columnWidth % shelfAlignment

	return &BucketedAllocator{
		width:               uint16(width),
		height:              uint16(height),
		availableHeight:     uint16(height),
		flipXY:              opts.VerticalShelves,
		alignment:           opts.Alignment,
		numColumns:          uint16(opts.NumColumns),
		columnWidth:         uint16(columnWidth),
		firstUnallocatedBin: noBin,
	}, nil
}

// Clear resets the allocator to its freshly-constructed state, logically
// discarding every outstanding allocation. Previously returned AllocIDs
// must not be used afterwards.
func (b *BucketedAllocator) Clear() {
	b.shelves = b.shelves[:0]
	b.bins = b.bins[:0]
	b.firstUnallocatedBin = noBin
	b.availableHeight = b.height
	b.currentColumn = 0
}

// Size returns the surface size the allocator was constructed with.
func (b *BucketedAllocator) Size() Size {
	w, h := convertCoordinates(b.flipXY, b.width, b.height)
	return Size{Width: int32(w), Height: int32(h)}
}

// IsEmpty reports whether the allocator has no live shelves.
func (b *BucketedAllocator) IsEmpty() bool {
	return len(b.shelves) == 0
}

// Allocate finds space for a rectangle of the requested size, rounding
// width and height up to a multiple of the allocator's alignment first.
// It reports false when the request is empty, exceeds a column's width
// or the surface height once aligned, or no gap is currently available
// even after shelf creation and empty-shelf coalescing.
func (b *BucketedAllocator) Allocate(requestedSize Size) (Allocation, bool) {
	if requestedSize.IsEmpty() {
		return Allocation{}, false
	}

	w32 := adjustSize(b.alignment.Width, requestedSize.Width)
	h32 := adjustSize(b.alignment.Height, requestedSize.Height)

	if b.flipXY {
		w32, h32 = h32, w32
	}

	if w32 > int32(b.columnWidth) || h32 > int32(b.height) {
		return Allocation{}, false
	}

	w, h := uint16(w32), uint16(h32)

	selectedShelf := -1
	selectedBin := noBin
	bestWaste := uint16(0xFFFF)

	canAddShelf := (b.availableHeight >= h || b.currentColumn+1 < b.numColumns) &&
		len(b.shelves) < maxShelfCount && len(b.bins) < maxBinCount

shelves:
	for shelfIndex := range b.shelves {
		shelf := &b.shelves[shelfIndex]
		if shelf.height < h || shelf.binWidth < w {
			continue
		}

		yWaste := shelf.height - h
		if yWaste > bestWaste || (canAddShelf && yWaste > h) {
			continue
		}

		binIdx := shelf.firstBin
		for binIdx != noBin {
			bin := &b.bins[binIdx]

			if bin.freeSpace >= w && bin.itemCount < maxItemsPerBin {
				if yWaste == 0 && bin.freeSpace == w {
					selectedShelf = shelfIndex
					selectedBin = binIdx
					break shelves
				}

				if yWaste < bestWaste {
					bestWaste = yWaste
					selectedShelf = shelfIndex
					selectedBin = binIdx
					break
				}
			}

			binIdx = bin.next
		}
	}

	if selectedBin == noBin {
		if canAddShelf {
			selectedShelf = b.addShelf(w, h)
			selectedBin = b.shelves[selectedShelf].firstBin
		} else {
			selectedShelf, selectedBin = b.coalesceShelves(w, h)
		}
	}

	if selectedBin != noBin {
		return b.allocFromBin(selectedShelf, selectedBin, w)
	}

	Logger().Debug("atlaspack: bucketed allocate: no bin found", "width", w, "height", h)
	return Allocation{}, false
}

// Deallocate releases one item from the bin id refers to. Space is only
// reclaimed once every item of that bin has been deallocated, and then
// only as part of top-down shelf garbage collection.
//
// id must have been returned by a prior call to Allocate on this same
// allocator; Deallocate panics if its generation doesn't match the bin's
// current generation (double free, or an id from a prior bin occupant).
func (b *BucketedAllocator) Deallocate(id AllocID) {
	if b.deallocateFromBin(id) {
		b.cleanupShelves()
	}
}

func (b *BucketedAllocator) allocFromBin(shelfIndex int, bin binIndex, width uint16) (Allocation, bool) {
	shelf := &b.shelves[shelfIndex]
	br := &b.bins[bin]

	minX := br.x + shelf.binWidth - br.freeSpace
	minY := shelf.y
	maxX := minX + width
	maxY := minY + shelf.height

	minX, minY = convertCoordinates(b.flipXY, minX, minY)
	maxX, maxY = convertCoordinates(b.flipXY, maxX, maxY)

	br.freeSpace -= width
	br.refcount++
	br.itemCount++

	return Allocation{
		ID: packBucketedID(bin, br.itemCount, br.generation),
		Rectangle: Rectangle{
			Min: Point{X: int32(minX), Y: int32(minY)},
			Max: Point{X: int32(maxX), Y: int32(maxY)},
		},
	}, true
}

// addShelf pushes a new shelf able to hold a width x height item,
// advancing to the next column first if the current one doesn't have
// enough room and another column is available.
func (b *BucketedAllocator) addShelf(width, height uint16) int {
	canAddColumn := b.currentColumn+1 < b.numColumns

	if b.availableHeight != 0 && b.availableHeight < height && canAddColumn {
		// Not enough room left in this column: push a filler shelf that
		// takes up the column's remaining height, then move to the next
		// column. The filler shelf gets ordinary bins, so later requests
		// short enough to fit in it can still be placed there.
		b.addShelf(0, b.availableHeight)
	}

	if b.availableHeight == 0 && canAddColumn {
		b.currentColumn++
		b.availableHeight = b.height
	}

	h := bucketizeHeight(height)
	if h > b.availableHeight {
		h = b.availableHeight
	}

	numBins := b.numBins(width, h)
	binWidth := b.columnWidth / numBins
	binWidth -= binWidth % uint16(b.alignment.Width)

	y := b.height - b.availableHeight
	b.availableHeight -= h

	shelfIndex := len(b.shelves)

	x := b.currentColumn * b.columnWidth
	binNext := noBin
	for i := uint16(0); i < numBins; i++ {
		bin := binRec{
			next:      binNext,
			x:         x,
			freeSpace: binWidth,
			refcount:  0,
			shelf:     uint16(shelfIndex),
			itemCount: 0,
		}
		x += binWidth

		var idx binIndex
		if b.firstUnallocatedBin == noBin {
			idx = binIndex(len(b.bins))
			b.bins = append(b.bins, bin)
		} else {
			idx = b.firstUnallocatedBin
			bin.generation = b.bins[idx].generation + 1
			b.firstUnallocatedBin = b.bins[idx].next
			b.bins[idx] = bin
		}

		binNext = idx
	}

	b.shelves = append(b.shelves, shelfRecB{
		x:        b.currentColumn * b.columnWidth,
		y:        y,
		height:   h,
		binWidth: binWidth,
		firstBin: binNext,
	})

	return shelfIndex
}

// coalesceShelves looks for up to 3 consecutive fully-empty shelves in
// the same column, wide enough and tall enough combined to fit a width x
// height item. On success the first shelf absorbs the combined height
// and the others are squashed to height 0 (they remain in place, to be
// garbage-collected from the top later, once nothing sits above them).
func (b *BucketedAllocator) coalesceShelves(w, h uint16) (int, binIndex) {
	length := len(b.shelves)

outer:
	for shelfIndex := 0; shelfIndex < length; shelfIndex++ {
		if b.shelves[shelfIndex].binWidth < w || !b.shelfIsEmpty(shelfIndex) {
			continue
		}

		shelfX := b.shelves[shelfIndex].x
		coalescedHeight := b.shelves[shelfIndex].height

		for i := 1; i < 3; i++ {
			// Bounds check first: the candidate's column membership
			// can only be inspected once we know the index is in range.
			if shelfIndex+i >= length {
				break outer
			}
			if b.shelves[shelfIndex+i].x != shelfX {
				continue outer
			}
			if !b.shelfIsEmpty(shelfIndex + i) {
				continue outer
			}

			coalescedHeight += b.shelves[shelfIndex+i].height

			if coalescedHeight >= h {
				for j := shelfIndex + 1; j <= shelfIndex+i; j++ {
					b.shelves[j].height = 0
				}
				b.shelves[shelfIndex].height = coalescedHeight
				return shelfIndex, b.shelves[shelfIndex].firstBin
			}
		}
	}

	return 0, noBin
}

// numBins picks how many equal-width bins a new shelf should be split
// into: coarser (fewer, wider bins) when items are large relative to
// the column, finer when items are small and many can share a shelf.
func (b *BucketedAllocator) numBins(width, height uint16) uint16 {
	largest := width
	if height > largest {
		largest = height
	}

	var n uint16
	switch ratio := b.columnWidth / largest; {
	case ratio <= 4:
		n = 1
	case ratio <= 15:
		n = 2
	case ratio <= 64:
		n = 4
	case ratio <= 256:
		n = 8
	default:
		n = 16
	}

	if remaining := uint16(maxBinCount - len(b.bins)); n > remaining {
		n = remaining
	}
	return n
}

// deallocateFromBin releases one reference on id's bin and reports
// whether that emptied a bin sitting on the topmost shelf — the only
// case that can trigger shelf garbage collection.
func (b *BucketedAllocator) deallocateFromBin(id AllocID) bool {
	bin, generation := unpackBucketedID(id)
	if int(bin) >= len(b.bins) {
		panic("atlaspack: deallocate called with an id from a different allocator")
	}

	br := &b.bins[bin]
	if generation != br.generation {
		panic("atlaspack: deallocate called with a stale generation (double free or cross-allocator id)")
	}
	if br.refcount == 0 {
		panic("atlaspack: deallocate called more times than allocate for this bin")
	}
	br.refcount--

	shelf := &b.shelves[br.shelf]
	binIsEmpty := br.refcount == 0
	if binIsEmpty {
		br.freeSpace = shelf.binWidth
	}

	return binIsEmpty && int(br.shelf) == len(b.shelves)-1
}

// cleanupShelves repeatedly removes the topmost shelf while every one of
// its bins is empty, stepping back a column when that shelf was the
// first (y == 0) one in a non-first column.
func (b *BucketedAllocator) cleanupShelves() {
	reclaimed := 0
	for len(b.shelves) > 0 {
		shelf := b.shelves[len(b.shelves)-1]

		binIdx := shelf.firstBin
		lastBin := shelf.firstBin
		for binIdx != noBin {
			bin := &b.bins[binIdx]
			if bin.refcount != 0 {
				if reclaimed > 0 {
					Logger().Debug("atlaspack: bucketed shelf gc", "shelves_reclaimed", reclaimed)
				}
				return
			}
			lastBin = binIdx
			binIdx = bin.next
		}

		b.bins[lastBin].next = b.firstUnallocatedBin
		b.firstUnallocatedBin = shelf.firstBin

		if shelf.y == 0 && b.currentColumn > 0 {
			b.currentColumn--
			prevShelf := b.shelves[len(b.shelves)-2]
			b.availableHeight = b.height - (prevShelf.y + prevShelf.height)
		} else {
			b.availableHeight += shelf.height
		}

		b.shelves = b.shelves[:len(b.shelves)-1]
		reclaimed++
	}

	if reclaimed > 0 {
		Logger().Debug("atlaspack: bucketed shelf gc", "shelves_reclaimed", reclaimed)
	}
}

func (b *BucketedAllocator) shelfIsEmpty(idx int) bool {
	binIdx := b.shelves[idx].firstBin
	for binIdx != noBin {
		if b.bins[binIdx].refcount != 0 {
			return false
		}
		binIdx = b.bins[binIdx].next
	}
	return true
}

// Each calls fn once for every allocated span and every free span
// within every bin of every shelf, for external visualization. fn
// receives the region's rectangle in the caller's (possibly flipped)
// coordinate space. Unlike [Allocator.Each], individual items are not
// represented — only the aggregate used/free split of each bin, since
// the bucketed engine doesn't track items individually.
func (b *BucketedAllocator) Each(fn func(Rectangle, Fill)) {
	for i := range b.shelves {
		shelf := &b.shelves[i]

		binIdx := shelf.firstBin
		for binIdx != noBin {
			bin := &b.bins[binIdx]
			used := shelf.binWidth - bin.freeSpace

			if used > 0 {
				x0, y0 := convertCoordinates(b.flipXY, bin.x, shelf.y)
				x1, y1 := convertCoordinates(b.flipXY, bin.x+used, shelf.y+shelf.height)
				fn(Rectangle{
					Min: Point{X: int32(x0), Y: int32(y0)},
					Max: Point{X: int32(x1), Y: int32(y1)},
				}, Allocated)
			}

			if bin.freeSpace > 0 {
				x0, y0 := convertCoordinates(b.flipXY, bin.x+used, shelf.y)
				x1, y1 := convertCoordinates(b.flipXY, bin.x+shelf.binWidth, shelf.y+shelf.height)
				fn(Rectangle{
					Min: Point{X: int32(x0), Y: int32(y0)},
					Max: Point{X: int32(x1), Y: int32(y1)},
				}, Free)
			}

			binIdx = bin.next
		}
	}
}
