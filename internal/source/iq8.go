package source

// decodeUint8Pairs converts RTL-SDR style unsigned 8-bit I/Q pairs into dst
func decodeUint8Pairs(dst []complex64, src []byte) {
	for i := range dst {
		re := (float32(src[2*i]) - 127.5) / 127.5
		im := (float32(src[2*i+1]) - 127.5) / 127.5
		dst[i] = complex(re, im)
	}
}
