package constants

import "strings"

// SourceFormat is the format of the file a Document page came from.
type SourceFormat string

const (
	PDF   SourceFormat = "PDF"
	IMAGE SourceFormat = "IMAGE"
	TEXT  SourceFormat = "TXT"
)

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps a file extension to the format recorded on a Document.
func MapExtToFormat(ext string) SourceFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "txt":
		return TEXT
	default:
		return IMAGE
	}
}
