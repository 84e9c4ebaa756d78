package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/citedoc/internal/domain"
)

// ChunkMode selects the chunking strategy.
type ChunkMode string

const (
	// ChunkModeSmart groups blank-line separated paragraphs with overlap.
	ChunkModeSmart ChunkMode = "smart"
	// ChunkModeFixed slices the text at fixed character offsets.
	ChunkModeFixed ChunkMode = "fixed"
)

// ChunkConfig controls chunking for document retrieval.
type ChunkConfig struct {
	Mode      ChunkMode
	ChunkSize int
	Overlap   int
}

// DefaultChunkConfig provides the paragraph-aware defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Mode:      ChunkModeSmart,
		ChunkSize: 800,
		Overlap:   150,
	}
}

// DefaultFixedChunkConfig provides the cheaper fixed-width defaults.
func DefaultFixedChunkConfig() ChunkConfig {
	return ChunkConfig{
		Mode:      ChunkModeFixed,
		ChunkSize: 1000,
		Overlap:   0,
	}
}

// ParseChunkMode normalizes a configured chunk mode, defaulting to smart.
func ParseChunkMode(mode string) ChunkMode {
	if strings.EqualFold(strings.TrimSpace(mode), string(ChunkModeFixed)) {
		return ChunkModeFixed
	}
	return ChunkModeSmart
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.Mode != ChunkModeFixed {
		c.Mode = ChunkModeSmart
	}
	if c.ChunkSize <= 0 {
		if c.Mode == ChunkModeFixed {
			c.ChunkSize = DefaultFixedChunkConfig().ChunkSize
		} else {
			c.ChunkSize = DefaultChunkConfig().ChunkSize
		}
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.ChunkSize {
		c.Overlap = c.ChunkSize / 4
	}
	return c
}

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits text into ordered, offset-tracked chunks.
// Each chunk's Text equals text[Start:End]. The result is deterministic.
func ChunkText(text, filename string, cfg ChunkConfig) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.normalized()
	if cfg.Mode == ChunkModeFixed {
		return chunkFixed(text, filename, cfg)
	}
	return chunkParagraphs(text, filename, cfg)
}

type span struct {
	start int
	end   int
}

// paragraphSpans returns the trimmed, non-empty paragraphs of text as offsets.
func paragraphSpans(text string) []span {
	var spans []span
	prev := 0
	add := func(start, end int) {
		if s := trimSpan(text, span{start: start, end: end}); s.end > s.start {
			spans = append(spans, s)
		}
	}
	for _, sep := range paragraphSeparator.FindAllStringIndex(text, -1) {
		add(prev, sep[0])
		prev = sep[1]
	}
	add(prev, len(text))
	return spans
}

func chunkParagraphs(text, filename string, cfg ChunkConfig) []domain.Chunk {
	paragraphs := paragraphSpans(text)
	chunks := make([]domain.Chunk, 0, len(text)/cfg.ChunkSize+1)

	var buf span
	empty := true
	emit := func() {
		chunks = append(chunks, domain.Chunk{
			Index: len(chunks),
			Text:  text[buf.start:buf.end],
			Start: buf.start,
			End:   buf.end,
			Metadata: domain.ChunkMetadata{
				Filename: filename,
				Type:     domain.ChunkTypeParagraphGroup,
			},
		})
	}

	for _, p := range paragraphs {
		if empty {
			buf = p
			empty = false
			continue
		}
		if utf8.RuneCountInString(text[buf.start:p.end]) > cfg.ChunkSize {
			emit()
			// Seed the next chunk with the tail of the one just closed.
			buf = span{start: backRunes(text, buf.end, cfg.Overlap, buf.start), end: p.end}
			continue
		}
		buf.end = p.end
	}
	if !empty {
		emit()
	}
	return chunks
}

func chunkFixed(text, filename string, cfg ChunkConfig) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(text)/cfg.ChunkSize+1)
	start := 0
	for start < len(text) {
		end := forwardRunes(text, start, cfg.ChunkSize)
		chunks = append(chunks, domain.Chunk{
			Index: len(chunks),
			Text:  text[start:end],
			Start: start,
			End:   end,
			Metadata: domain.ChunkMetadata{
				Filename: filename,
				Type:     domain.ChunkTypeFixedWindow,
			},
		})
		if end >= len(text) {
			break
		}
		next := backRunes(text, end, cfg.Overlap, start+1)
		if next <= start {
			next = end
		}
		start = forwardToRuneStart(text, next)
	}
	return chunks
}

// trimSpan shrinks s to exclude leading and trailing whitespace.
func trimSpan(text string, s span) span {
	for s.start < s.end {
		r, size := utf8.DecodeRuneInString(text[s.start:])
		if !unicode.IsSpace(r) {
			break
		}
		s.start += size
	}
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}

// backRunes steps back n runes from end without crossing floor.
func backRunes(text string, end, n, floor int) int {
	pos := end
	for i := 0; i < n && pos > floor; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
	}
	if pos < floor {
		pos = floor
	}
	return forwardToRuneStart(text, pos)
}

// forwardRunes steps n runes forward from start, capped at len(text).
func forwardRunes(text string, start, n int) int {
	pos := start
	for i := 0; i < n && pos < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
	}
	return pos
}

// forwardToRuneStart moves pos forward to the next rune boundary, capped at len(text).
func forwardToRuneStart(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	if pos < 0 {
		return 0
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}
