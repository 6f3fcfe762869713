package atlaspack

// AllocID is an opaque handle to a previously allocated rectangle,
// returned by Allocate and consumed by Deallocate. Its bit layout is an
// implementation detail of the engine that produced it; callers should
// only pass it back to the same allocator instance that produced it.
type AllocID uint32

// Serialize returns the identity bit-cast of the id, for embedders that
// want to persist ids (e.g. alongside their own on-disk format) without
// reaching into this package's internals.
func (id AllocID) Serialize() uint32 {
	return uint32(id)
}

// DeserializeAllocID is the inverse of AllocID.Serialize.
func DeserializeAllocID(bits uint32) AllocID {
	return AllocID(bits)
}

// Bucketed-engine bit layout: bits[24:32] = generation, bits[12:24] =
// per-bin item counter, bits[0:12] = bin index. The per-item engine does
// not use this layout at all — its AllocID is simply the item's dense
// index, since a single engine-wide item index space already exceeds 12
// bits (up to 65535 live items) and needs no generation counter (the
// item's allocated flag is the ABA guard there instead).
const (
	bucketedBinBits  = 12
	bucketedItemBits = 12

	bucketedBinMask  uint32 = (1 << bucketedBinBits) - 1
	bucketedItemMask uint32 = ((1 << bucketedItemBits) - 1) << bucketedBinBits
	bucketedGenMask  uint32 = 0xFF << (bucketedBinBits + bucketedItemBits)
)

// packBucketedID bit-packs a bin index, per-bin item counter, and
// generation into an AllocID.
func packBucketedID(bin binIndex, itemCount uint16, generation uint8) AllocID {
	return AllocID(
		uint32(bin)&bucketedBinMask |
			(uint32(itemCount)<<bucketedBinBits)&bucketedItemMask |
			uint32(generation)<<(bucketedBinBits+bucketedItemBits),
	)
}

// unpackBucketedID is the inverse of packBucketedID, returning only the
// fields Deallocate needs (the item counter is write-only metadata used
// solely to keep ids minted from the same bin distinct).
func unpackBucketedID(id AllocID) (bin binIndex, generation uint8) {
	bin = binIndex(uint32(id) & bucketedBinMask)
	generation = uint8((uint32(id) & bucketedGenMask) >> (bucketedBinBits + bucketedItemBits))
	return bin, generation
}
