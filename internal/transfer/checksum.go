package transfer

import (
	"encoding/base64"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ChecksumCRC32C computes the CRC32C of body in the encoding S3 expects for
// x-amz-checksum-crc32c: the big-endian checksum, base64-encoded.
func ChecksumCRC32C(body []byte) string {
	sum := crc32.Checksum(body, castagnoli)
	raw := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
	return base64.StdEncoding.EncodeToString(raw)
}
