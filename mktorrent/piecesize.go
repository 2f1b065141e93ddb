package mktorrent

const (
	minPieceLength = 1 << 15 // 32KiB
	maxPieceLength = 1 << 22 // 4MiB

	pieceHashSize = 20
	// pieces table budget in bytes
	maxPiecesTable = 60 * 1024
)

// OptimalPieceSize picks the smallest power of two piece length in
// [32KiB, 2MiB] whose piece table stays under 60KiB, falling back to 4MiB
// for very large inputs.
//
// The returned count is floor(totalSize/pieceLength)+1, which overcounts by
// one when totalSize is an exact multiple of the piece length. It is a
// sizing estimate only; the real number of pieces comes from slicing.
func OptimalPieceSize(totalSize int64) (pieceLength, pieceCount int64, err error) {
	if totalSize < 0 {
		return 0, 0, configError("piece size", ErrNegativeSize)
	}
	for size := int64(minPieceLength); size < maxPieceLength; size *= 2 {
		pieces := totalSize/size + 1
		if pieces*pieceHashSize < maxPiecesTable {
			return size, pieces, nil
		}
	}
	return maxPieceLength, totalSize/maxPieceLength + 1, nil
}
