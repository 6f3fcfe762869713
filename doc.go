// Package atlaspack provides dynamic 2-D rectangle packing for texture
// atlases: glyph caches, sprite sheets, and image tile caches.
//
// Given a fixed rectangular surface of known pixel width and height,
// callers repeatedly request rectangles of arbitrary sizes with Allocate
// and later release them with Deallocate; the packer returns non-overlapping
// axis-aligned placements and, over time, reclaims released space for reuse.
//
// # Two engines
//
// atlaspack ships two independent allocator engines sharing the same
// contract:
//
//   - [Allocator] tracks each allocation individually, with coalescing of
//     adjacent free space at deallocation time. Suited to general-purpose
//     packing with heterogeneous, individually long-lived items.
//   - [BucketedAllocator] groups allocations into fixed-width bins stacked
//     on shelves of bucketed heights, and frees only whole bins via
//     reference counting. Suited to many small, similarly sized items
//     (glyph atlases) where per-item bookkeeping would dominate cost.
//
// Neither engine attempts optimal 2-D packing (that problem is NP-hard);
// both are deliberate shelf-packing heuristics.
//
// # Quick start
//
//	pack, err := atlaspack.New(atlaspack.Size{Width: 1024, Height: 1024})
//
//	alloc, ok := pack.Allocate(atlaspack.Size{Width: 32, Height: 32})
//	if !ok {
//	    // surface is full
//	}
//
//	pack.Deallocate(alloc.ID)
//
// # Scope
//
// This package treats the allocators as a pure in-memory data structure:
// it never touches pixels, GPU resources, or files. Rendering a visual
// dump, serializing to disk, and driving these engines from a CLI are
// left to external collaborators built against [Allocator.Each] /
// [BucketedAllocator.Each] and the [AllocID] codec.
package atlaspack
