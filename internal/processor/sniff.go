package processor

// SniffFormat inspects the raw bytes and returns the image format:
// "jpeg", "png", "tiff", "gif", or "" if unknown.
func SniffFormat(data []byte) string {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg"
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "png"
	}
	// TIFF: little-endian "II*\0" or big-endian "MM\0*"
	if len(data) >= 4 {
		if data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0x00 {
			return "tiff"
		}
		if data[0] == 'M' && data[1] == 'M' && data[2] == 0x00 && data[3] == 0x2A {
			return "tiff"
		}
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return "gif"
	}
	return ""
}
