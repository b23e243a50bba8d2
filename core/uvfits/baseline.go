// core/uvfits/baseline.go
package uvfits

// EncodeBaseline packs a 1-based antenna pair into the random-groups BASELINE
// parameter. The miriad convention extends the classic 256-based encoding to
// arrays with more than 255 antennas (up to 2048) and stays backwards
// compatible below that.
func EncodeBaseline(a1, a2 int) int {
	if a2 > 255 {
		return a1*2048 + a2 + 65536
	}
	return a1*256 + a2
}

// DecodeBaseline unpacks a BASELINE parameter into its 1-based antenna pair.
func DecodeBaseline(b int) (a1, a2 int) {
	if b >= 65536 {
		b -= 65536
		return b / 2048, b % 2048
	}
	return b / 256, b % 256
}
