package util

import (
	"strings"
)

const fallbackName = "animation"

// SanitiseTitle drops characters that are unsafe in filenames on common
// platforms, along with the interpunct.
func SanitiseTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|', '·':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, title)
}

// SuggestedFilename joins id and sanitised title as "<id>_<title><variant><ext>".
// The underscore stays whenever there is an id, so an untitled work is
// "<id>_<variant><ext>". With nothing to go on it falls back to
// "animation<ext>".
func SuggestedFilename(id, title, variant, ext string) string {
	title = strings.TrimSpace(SanitiseTitle(title))
	variant = SanitiseTitle(variant)

	var base string
	switch {
	case id != "":
		base = SanitiseTitle(id) + "_" + title
	case title != "":
		base = title
	}
	base += variant
	if base == "" {
		base = fallbackName
	}
	return base + ext
}
