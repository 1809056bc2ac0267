package utils

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/menta2k/meishi-analyzer/pkg/types"
)

// cardExts maps accepted card file extensions to their media types
var cardExts = map[string]types.MediaType{
	"pdf":  types.MediaTypePDF,
	"png":  types.MediaTypePNG,
	"jpg":  types.MediaTypeJPEG,
	"jpeg": types.MediaTypeJPEG,
	"webp": types.MediaTypeWEBP,
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsCardFile checks if a file has a PDF or supported image extension
func IsCardFile(filename string) bool {
	_, ok := cardExts[GetFileExtension(filename)]
	return ok
}

// DetectMediaType sniffs the content of data and falls back to the file
// extension. The returned type may be unsupported; callers validate it.
func DetectMediaType(filename string, data []byte) types.MediaType {
	if len(data) > 0 {
		sniffed, _ := types.ParseMediaType(http.DetectContentType(data))
		if slices.Contains(types.SupportedMediaTypes, sniffed) {
			return sniffed
		}
	}
	if mt, ok := cardExts[GetFileExtension(filename)]; ok {
		return mt
	}
	if len(data) > 0 {
		mt, _ := types.ParseMediaType(http.DetectContentType(data))
		return mt
	}
	return ""
}

// GenerateOutputFilename generates an output filename based on input and parameters
func GenerateOutputFilename(inputFile, outputDir, suffix, format string) string {
	baseName := filepath.Base(inputFile)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if format == "" {
		format = "json"
	}
	outputName := fmt.Sprintf("%s%s.%s", SanitizeFilename(nameWithoutExt), suffix, format)
	return filepath.Join(outputDir, outputName)
}

// ListCardFiles recursively lists all card files in a directory
func ListCardFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsCardFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
