package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the default allowed file extensions for document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFPath reports whether the path looks like a PDF by extension.
func IsPDFPath(path string) bool {
	return NormalizeExt(filepath.Ext(path)) == "pdf"
}

// IsAllowedPath reports whether the path has an ingestible extension.
func IsAllowedPath(path string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}
