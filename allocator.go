package atlaspack

// shelfSplitThreshold and itemSplitThreshold bound how small a leftover
// slice of a shelf or item may be before it's left attached instead of
// split off as its own (likely unusable) free region. Because sizes are
// already bucketed, residuals below these thresholds would otherwise
// fragment into slivers no later request could realistically use.
const (
	shelfSplitThreshold uint16 = 8
	itemSplitThreshold  uint16 = 8
)

type shelfIndex uint16
type itemIndex uint16

const (
	noShelf shelfIndex = 0xFFFF
	noItem  itemIndex  = 0xFFFF
)

type shelfRec struct {
	y, height  uint16
	prev, next shelfIndex
	firstItem  itemIndex
	isEmpty    bool
}

type itemRec struct {
	x, width   uint16
	prev, next itemIndex
	shelf      shelfIndex
	allocated  bool
}

// Allocator is a shelf-packing dynamic atlas allocator that tracks each
// allocation individually, with coalescing of adjacent free items and
// adjacent empty shelves at deallocation time.
//
// It suits general-purpose packing with heterogeneous, individually
// long-lived items. For many small, similarly sized items (glyph
// atlases), see [BucketedAllocator].
type Allocator struct {
	shelves []shelfRec
	items   []itemRec

	size      Size
	alignment Size
	flipXY    bool

	firstShelf  shelfIndex
	freeItems   itemIndex
	freeShelves shelfIndex
}

// New creates an allocator for the given surface size with default
// options.
func New(size Size) (*Allocator, error) {
	return NewWithOptions(size, DefaultOptions())
}

// NewWithOptions creates an allocator for the given surface size with
// the provided options.
func NewWithOptions(size Size, opts Options) (*Allocator, error) {
	if err := opts.Validate(size); err != nil {
		return nil, err
	}

	a := &Allocator{
		size:      size,
		alignment: opts.Alignment,
		flipXY:    opts.VerticalShelves,
	}
	a.reset()
	return a, nil
}

func (a *Allocator) reset() {
	width, height := convertCoordinates(a.flipXY, uint16(a.size.Width), uint16(a.size.Height))
	a.shelves = []shelfRec{{
		y:         0,
		height:    height,
		prev:      noShelf,
		next:      noShelf,
		firstItem: 0,
		isEmpty:   true,
	}}
	a.items = []itemRec{{
		x:         0,
		width:     width,
		prev:      noItem,
		next:      noItem,
		shelf:     0,
		allocated: false,
	}}
	a.firstShelf = 0
	a.freeItems = noItem
	a.freeShelves = noShelf
}

// Clear resets the allocator to its freshly-constructed state, logically
// discarding every outstanding allocation. Previously returned AllocIDs
// must not be used afterwards.
func (a *Allocator) Clear() {
	a.reset()
}

// Size returns the surface size the allocator was constructed with.
func (a *Allocator) Size() Size {
	return a.size
}

// IsEmpty reports whether the allocator has no live allocations.
func (a *Allocator) IsEmpty() bool {
	shelf := &a.shelves[a.firstShelf]
	item := &a.items[shelf.firstItem]
	return shelf.next == noShelf && item.next == noItem && !item.allocated
}

// Allocate finds space for a rectangle of the requested size, rounding
// width and height up to a multiple of the allocator's alignment first.
// It reports false when the request is empty, exceeds the surface once
// aligned, or no gap is currently available.
func (a *Allocator) Allocate(requested Size) (Allocation, bool) {
	if requested.IsEmpty() {
		return Allocation{}, false
	}

	w := adjustSize(a.alignment.Width, requested.Width)
	h := adjustSize(a.alignment.Height, requested.Height)

	if w > a.size.Width || h > a.size.Height {
		return Allocation{}, false
	}

	surfaceWidth, surfaceHeight := convertCoordinates(a.flipXY, uint16(a.size.Width), uint16(a.size.Height))
	width, height := convertCoordinates(a.flipXY, uint16(w), uint16(h))
	height = bucketizeHeight(height)
	if height > surfaceHeight {
		height = surfaceHeight
	}

	selectedShelfHeight := uint16(0xFFFF)
	selectedShelf := noShelf
	selectedItem := noItem

	shelfIdx := a.firstShelf
	for shelfIdx != noShelf {
		shelf := &a.shelves[shelfIdx]

		if shelf.height < height ||
			shelf.height >= selectedShelfHeight ||
			(!shelf.isEmpty && shelf.height > height*2) {
			shelfIdx = shelf.next
			continue
		}

		itemIdx := shelf.firstItem
		for itemIdx != noItem {
			item := &a.items[itemIdx]
			if !item.allocated && item.width >= width {
				break
			}
			itemIdx = item.next
		}

		if itemIdx != noItem {
			selectedShelf = shelfIdx
			selectedShelfHeight = shelf.height
			selectedItem = itemIdx

			if shelf.height == height {
				break
			}
		}

		shelfIdx = shelf.next
	}

	if selectedShelf == noShelf {
		Logger().Debug("atlaspack: allocate: no shelf found", "width", width, "height", height)
		return Allocation{}, false
	}

	shelf := a.shelves[selectedShelf]
	if shelf.isEmpty {
		a.shelves[selectedShelf].isEmpty = false
	}

	if shelf.isEmpty && shelf.height > height+shelfSplitThreshold {
		// Split the empty shelf into one of the desired size and a new
		// empty one with a single free item spanning the surface width.
		newShelfIdx := a.addShelf(shelfRec{
			y:         shelf.y + height,
			height:    shelf.height - height,
			prev:      selectedShelf,
			next:      shelf.next,
			firstItem: noItem,
			isEmpty:   true,
		})

		newItemIdx := a.addItem(itemRec{
			x:         0,
			width:     surfaceWidth,
			prev:      noItem,
			next:      noItem,
			shelf:     newShelfIdx,
			allocated: false,
		})
		a.shelves[newShelfIdx].firstItem = newItemIdx

		next := a.shelves[selectedShelf].next
		a.shelves[selectedShelf].height = height
		a.shelves[selectedShelf].next = newShelfIdx
		if next != noShelf {
			a.shelves[next].prev = newShelfIdx
		}

		shelf = a.shelves[selectedShelf]
	}

	item := a.items[selectedItem]

	if item.width-width > itemSplitThreshold {
		newItemIdx := a.addItem(itemRec{
			x:         item.x + width,
			width:     item.width - width,
			prev:      selectedItem,
			next:      item.next,
			shelf:     item.shelf,
			allocated: false,
		})
		a.items[selectedItem].width = width
		a.items[selectedItem].next = newItemIdx
		if item.next != noItem {
			a.items[item.next].prev = newItemIdx
		}
		item = a.items[selectedItem]
	}

	a.items[selectedItem].allocated = true

	x0, y0 := item.x, shelf.y
	x1, y1 := x0+width, y0+height

	x0, y0 = convertCoordinates(a.flipXY, x0, y0)
	x1, y1 = convertCoordinates(a.flipXY, x1, y1)

	a.check()

	return Allocation{
		ID: AllocID(selectedItem),
		Rectangle: Rectangle{
			Min: Point{X: int32(x0), Y: int32(y0)},
			Max: Point{X: int32(x1), Y: int32(y1)},
		},
	}, true
}

// Deallocate releases the rectangle identified by id, coalescing it with
// adjacent free items and, if that empties its shelf, with adjacent
// empty shelves.
//
// id must have been returned by a prior call to Allocate on this same
// allocator and not yet deallocated. Deallocate panics when id does not
// name a currently allocated item; an id whose item slot has since been
// reused by a newer allocation is not detected and releases that newer
// allocation instead.
func (a *Allocator) Deallocate(id AllocID) {
	idx := itemIndex(id)
	if int(idx) >= len(a.items) || !a.items[idx].allocated {
		panic("atlaspack: deallocate called with an id that is not currently allocated")
	}

	a.items[idx].allocated = false

	item := a.items[idx]
	prev, next, width := item.prev, item.next, item.width

	if next != noItem && !a.items[next].allocated {
		nextNext := a.items[next].next
		nextWidth := a.items[next].width

		a.items[idx].next = nextNext
		a.items[idx].width += nextWidth
		width = a.items[idx].width

		if nextNext != noItem {
			a.items[nextNext].prev = idx
		}

		a.removeItem(next)
		next = nextNext
	}

	if prev != noItem && !a.items[prev].allocated {
		a.items[prev].next = next
		a.items[prev].width += width

		if next != noItem {
			a.items[next].prev = prev
		}

		a.removeItem(idx)
		prev = a.items[prev].prev
	}

	if prev == noItem && next == noItem {
		shelfIdx := item.shelf
		a.shelves[shelfIdx].isEmpty = true

		nextShelf := a.shelves[shelfIdx].next
		if nextShelf != noShelf && a.shelves[nextShelf].isEmpty {
			nextNext := a.shelves[nextShelf].next
			nextHeight := a.shelves[nextShelf].height

			a.shelves[shelfIdx].next = nextNext
			a.shelves[shelfIdx].height += nextHeight

			if nextNext != noShelf {
				a.shelves[nextNext].prev = shelfIdx
			}

			a.removeShelf(nextShelf)
		}

		prevShelf := a.shelves[shelfIdx].prev
		if prevShelf != noShelf && a.shelves[prevShelf].isEmpty {
			next := a.shelves[shelfIdx].next
			a.shelves[prevShelf].next = next
			a.shelves[prevShelf].height += a.shelves[shelfIdx].height

			if next != noShelf {
				a.shelves[next].prev = prevShelf
			}

			a.removeShelf(shelfIdx)
		}
	}

	a.check()
}

// Each calls fn once for every region currently tracked by the
// allocator — both free and allocated — in shelf and then item order,
// for external visualization. fn receives the region's rectangle in the
// caller's (possibly flipped) coordinate space and whether it is
// currently allocated.
func (a *Allocator) Each(fn func(Rectangle, Fill)) {
	shelfIdx := a.firstShelf
	for shelfIdx != noShelf {
		shelf := &a.shelves[shelfIdx]

		itemIdx := shelf.firstItem
		for itemIdx != noItem {
			item := &a.items[itemIdx]

			x0, y0 := convertCoordinates(a.flipXY, item.x, shelf.y)
			x1, y1 := convertCoordinates(a.flipXY, item.x+item.width, shelf.y+shelf.height)

			fill := Free
			if item.allocated {
				fill = Allocated
			}

			fn(Rectangle{
				Min: Point{X: int32(x0), Y: int32(y0)},
				Max: Point{X: int32(x1), Y: int32(y1)},
			}, fill)

			itemIdx = item.next
		}

		shelfIdx = shelf.next
	}
}

func (a *Allocator) removeItem(idx itemIndex) {
	a.items[idx].next = a.freeItems
	a.freeItems = idx
}

func (a *Allocator) removeShelf(idx shelfIndex) {
	a.removeItem(a.shelves[idx].firstItem)
	a.shelves[idx].next = a.freeShelves
	a.freeShelves = idx
}

func (a *Allocator) addItem(item itemRec) itemIndex {
	if a.freeItems != noItem {
		idx := a.freeItems
		a.freeItems = a.items[idx].next
		a.items[idx] = item
		return idx
	}

	idx := itemIndex(len(a.items))
	a.items = append(a.items, item)
	return idx
}

func (a *Allocator) addShelf(shelf shelfRec) shelfIndex {
	if a.freeShelves != noShelf {
		idx := a.freeShelves
		a.freeShelves = a.shelves[idx].next
		a.shelves[idx] = shelf
		return idx
	}

	idx := shelfIndex(len(a.shelves))
	a.shelves = append(a.shelves, shelf)
	return idx
}

// check walks the allocator's shelf and item lists verifying tiling and
// adjacency invariants, when DebugAssertions is enabled. It's a no-op
// otherwise, so production builds don't pay for the O(shelves + items)
// walk on every mutating call.
func (a *Allocator) check() {
	if !DebugAssertions {
		return
	}

	targetW, targetH := uint16(a.size.Width), uint16(a.size.Height)
	if a.flipXY {
		targetW, targetH = targetH, targetW
	}

	prevEmpty := false
	var accumH uint16
	shelfIdx := a.firstShelf
	for shelfIdx != noShelf {
		shelf := &a.shelves[shelfIdx]
		accumH += shelf.height
		if prevEmpty && shelf.isEmpty {
			panic("atlaspack: internal consistency check failed: two adjacent empty shelves")
		}
		if shelf.isEmpty {
			firstItem := &a.items[shelf.firstItem]
			if firstItem.allocated || firstItem.next != noItem {
				panic("atlaspack: internal consistency check failed: empty shelf doesn't hold exactly one free item")
			}
		}
		prevEmpty = shelf.isEmpty

		var accumW uint16
		prevAllocated := true
		itemIdx := shelf.firstItem
		prevItemIdx := noItem
		for itemIdx != noItem {
			item := &a.items[itemIdx]
			accumW += item.width

			if item.prev != prevItemIdx {
				panic("atlaspack: internal consistency check failed: item prev pointer mismatch")
			}
			if !prevAllocated && !item.allocated {
				panic("atlaspack: internal consistency check failed: two adjacent free items")
			}
			prevAllocated = item.allocated

			prevItemIdx = itemIdx
			itemIdx = item.next
		}

		if accumW != targetW {
			panic("atlaspack: internal consistency check failed: shelf items don't tile the surface width")
		}

		shelfIdx = shelf.next
	}

	if accumH != targetH {
		panic("atlaspack: internal consistency check failed: shelves don't tile the surface height")
	}
}

