package linkedit

import "crypto/md5"

// BuildContentUUID hashes the given image bytes (the caller is responsible
// for excluding the stabs region — nlist entries and their strings in the
// string pool — from image) with MD5, then stamps the four RFC-4122
// version/variant bits so the result reads as a valid (if not
// cryptographically meaningful) UUID, per spec.md §4.7.
func BuildContentUUID(image []byte) [16]byte {
	sum := md5.Sum(image)
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3 (name-based, closest analog for a content hash)
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC-4122 variant
	return sum
}
