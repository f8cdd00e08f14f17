package nnpcore

import (
	"encoding/binary"
	"math"
)

// putFloat32 writes f as 4 little-endian bytes at the start of buf.
func putFloat32(buf []byte, f float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
}

// getFloat32 reads a float32 from the first 4 bytes of buf.
func getFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
