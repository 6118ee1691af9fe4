// File path: internal/kb/excerpt.go
package kb

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nicodishanthj/rfpassist/internal/common"
)

// DefaultMaxChars is the character budget of a knowledge-base excerpt.
const DefaultMaxChars = 16000

// Source describes one file included in an excerpt.
type Source struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Chars int    `json:"chars"`
}

// Excerpt is the concatenated reference text handed to the drafting prompt.
type Excerpt struct {
	Text        string   `json:"-"`
	Sources     []Source `json:"sources"`
	Chars       int      `json:"chars"`
	Fingerprint string   `json:"fingerprint"`
}

// Load reads files under dir in lexical order until the next file would push
// the total past maxChars. Files are never cut mid-way. Hidden entries, files
// without an extension and unreadable files are skipped. A missing directory
// yields an empty excerpt.
func Load(dir string, maxChars int) Excerpt {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	logger := common.Logger()
	var (
		parts   []string
		sources []Source
		total   int
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.Contains(name, ".") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Debug("kb: skipping unreadable file", "path", path, "error", readErr)
			return nil
		}
		text := strings.ToValidUTF8(string(data), "")
		chars := utf8.RuneCountInString(text)
		if total+chars > maxChars {
			return fs.SkipAll
		}
		parts = append(parts, "\n# SOURCE: "+name+"\n"+text+"\n")
		sources = append(sources, Source{Name: name, Path: path, Chars: chars})
		total += chars
		return nil
	})
	if walkErr != nil {
		logger.Warn("kb: knowledge base unavailable", "dir", dir, "error", walkErr)
	}
	excerpt := Excerpt{
		Text:    strings.Join(parts, "\n"),
		Sources: sources,
		Chars:   total,
	}
	excerpt.Fingerprint = excerptFingerprint(sources, parts)
	return excerpt
}
