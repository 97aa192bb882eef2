package embeddings

import "strings"

// FastEmbedDimension returns the vector width of a supported fastembed
// model. Both "BAAI/bge-small-zh-v1.5" and "fast-bge-small-zh-v1.5" forms
// are accepted.
func FastEmbedDimension(model string) (int, bool) {
	name := strings.TrimPrefix(model, "fast-")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "bge-small-zh-v1.5":
		return 512, true
	case "bge-small-en-v1.5", "all-MiniLM-L6-v2":
		return 384, true
	case "bge-base-en-v1.5":
		return 768, true
	}
	return 0, false
}
