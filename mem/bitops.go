package mem

func getBiti8(v uint8, n uint) uint8 {
	return v >> n & 0x01
}

func setBit8(v *uint8, n uint) {
	*v |= 1 << n
}

func clearBit8(v *uint8, n uint) {
	*v &^= 1 << n
}
