package ingest

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a hex BLAKE3 digest of the feature matrix. Reports
// carry it so results can be correlated back to the exact dataset that
// produced them.
func Fingerprint(matrix [][]float64) string {
	h := blake3.New()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(matrix)))
	h.Write(buf[:])

	for _, row := range matrix {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
