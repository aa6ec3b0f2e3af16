package scrape

// DefaultChunkLimit bounds the text passed to the LLM in one request, in
// runes. Roughly a quarter of a small model's context window.
const DefaultChunkLimit = 12000

// boundary preference for chunk cuts, strongest first.
var chunkBoundaries = []rune{'.', '!', '?', '\n', ','}

// Chunk splits text into pieces of at most limit runes. Cuts prefer the
// punctuation boundary nearest to but not past the limit, trying stronger
// boundaries first; when no boundary falls inside the window the text is cut
// hard at the limit. Concatenating the chunks reproduces the input.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		window := runes[:limit]
		cut := -1
		for _, b := range chunkBoundaries {
			if idx := lastIndex(window, b); idx >= 0 {
				cut = idx + 1
				break
			}
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
