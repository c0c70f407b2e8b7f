package bridge

// Flag is the underlying type of generated bitfield members.
type Flag interface {
	~int32 | ~uint32 | ~int64 | ~uint64
}

// JoinFlags ORs a set of flags into one native value.
func JoinFlags[F Flag](flags []F) uint64 {
	var v uint64
	for _, f := range flags {
		v |= uint64(f)
	}
	return v
}

// SplitFlags decodes v into its set bits, lowest first. Zero yields an empty set.
func SplitFlags(v uint64) []uint64 {
	bits := []uint64{}
	for v != 0 {
		bit := v & -v
		bits = append(bits, bit)
		v &= v - 1
	}
	return bits
}
