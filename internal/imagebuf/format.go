package imagebuf

import "strings"

// FormatForMIME maps a declared content type to the format used when the
// upload has to be re-encoded.
func FormatForMIME(mimeType string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return PNG, true
	case "image/jpeg", "image/jpg":
		return JPEG, true
	}
	return "", false
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return "png"
}
