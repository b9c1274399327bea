package fileutil

import "bytes"

// DetectImageType sniffs the leading bytes of an image and returns the file
// extension for recognized menu photo formats (JPEG, PNG, WebP).
func DetectImageType(data []byte) (ext string, ok bool) {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xff, 0xd8, 0xff}):
		return "jpg", true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return "png", true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp", true
	default:
		return "", false
	}
}
