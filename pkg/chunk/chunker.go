// Package chunk splits a normalised document into coarse sections for the
// outer rewrite loop. Three strategies are tried in order — academic heading
// detection, paragraph grouping, and a character window — followed by a
// merge pass that folds undersized sections into their successor.
//
// The chunk list is never empty (a short or unsegmentable document becomes a
// single full-document chunk) and the concatenation of chunk contents
// preserves the document's text and order.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is one coarse section of a document.
type Chunk struct {
	// Title is the display title shown in progress events.
	Title string

	// RawTitle is the matching key: the heading text exactly as it appeared
	// in the document, or a synthetic label for fallback strategies.
	RawTitle string

	// Content is the section body (for heading chunks, heading line
	// included) as it appears in the normalised document.
	Content string
}

// Config holds the segmenter's size thresholds. Zero fields take the
// defaults below.
type Config struct {
	// MaxChunkChars bounds chunk size for the window fallback and the merge
	// pass, in runes. Default: 2000.
	MaxChunkChars int

	// MinChunkChars is the size under which a chunk is merged into its
	// successor. Default: 400.
	MinChunkChars int

	// ParagraphsPerChunk is how many consecutive paragraphs the paragraph
	// fallback groups into one chunk. Default: 6.
	ParagraphsPerChunk int
}

func (c Config) withDefaults() Config {
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = 2000
	}
	if c.MinChunkChars <= 0 {
		c.MinChunkChars = 400
	}
	if c.ParagraphsPerChunk <= 0 {
		c.ParagraphsPerChunk = 6
	}
	return c
}

// headingPattern matches one heading line: markdown heading syntax or a
// curated bilingual list of academic section names, alone on their line.
var headingPattern = regexp.MustCompile(`(?m)^(?:#{1,6}\s+.+|(?:\d{1,2}[.、]?\s*)?(?:Abstract|Introduction|Related Works?|Background|Methods?|Methodology|Materials and Methods|Experiments?|Results?|Discussion|Evaluation|Conclusions?|References|Acknowledgm?ents?|Appendix|摘要|引言|绪论|研究背景|相关工作|文献综述|研究方法|实验设计|实验结果|结果与讨论|分析与讨论|结论|总结|参考文献|致谢|附录)\s*)$`)

// Segmenter splits documents into chunks. Safe for concurrent use.
type Segmenter struct {
	cfg Config
}

// NewSegmenter returns a Segmenter with cfg applied over the defaults.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.withDefaults()}
}

// Split segments text and merges undersized chunks. It is the composition
// of [Segmenter.ChunkDocument] and [Segmenter.MergeSmall].
func (s *Segmenter) Split(text string) []Chunk {
	return s.MergeSmall(s.ChunkDocument(text))
}

// ChunkDocument splits text into chunks using the first strategy that
// yields more than one section: heading detection, then paragraph grouping,
// then a sliding character window. A document none of them can divide comes
// back as a single full-document chunk. The concatenation of chunk contents
// preserves the document's content and order.
func (s *Segmenter) ChunkDocument(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Chunk{{Title: "全文", RawTitle: "document", Content: ""}}
	}

	if chunks := s.byHeadings(text); len(chunks) > 1 {
		return chunks
	}
	if chunks := s.byParagraphs(text); len(chunks) > 1 {
		return chunks
	}
	if chunks := s.byWindow(text); len(chunks) > 1 {
		return chunks
	}
	return []Chunk{{Title: "全文", RawTitle: "document", Content: text}}
}

// byHeadings splits at each matched heading line, pairing the heading with
// the text that follows it up to the next heading. Text before the first
// heading becomes a preamble chunk.
func (s *Segmenter) byHeadings(text string) []Chunk {
	locs := headingPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var chunks []Chunk
	if head := strings.TrimSpace(text[:locs[0][0]]); head != "" {
		chunks = append(chunks, Chunk{Title: "前言", RawTitle: "preamble", Content: head})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := strings.TrimSpace(text[loc[0]:loc[1]])
		body := strings.TrimRight(text[loc[0]:end], "\n")
		chunks = append(chunks, Chunk{
			Title:    strings.TrimLeft(heading, "# "),
			RawTitle: heading,
			Content:  body,
		})
	}
	return chunks
}

// byParagraphs splits on blank lines and groups every ParagraphsPerChunk
// consecutive paragraphs into a chunk. Returns nil when the text is a
// single paragraph.
func (s *Segmenter) byParagraphs(text string) []Chunk {
	paras := splitParagraphs(text)
	if len(paras) <= 1 {
		return nil
	}

	var chunks []Chunk
	for start := 0; start < len(paras); start += s.cfg.ParagraphsPerChunk {
		end := min(start+s.cfg.ParagraphsPerChunk, len(paras))
		chunks = append(chunks, Chunk{
			Title:    fmt.Sprintf("第%d部分", len(chunks)+1),
			RawTitle: fmt.Sprintf("part-%d", len(chunks)+1),
			Content:  strings.Join(paras[start:end], "\n\n"),
		})
	}
	return chunks
}

// byWindow slides a MaxChunkChars window across the text, snapping each cut
// backward to the nearest paragraph break, then line break, within the
// trailing half of the window; without one the cut lands at the exact size.
func (s *Segmenter) byWindow(text string) []Chunk {
	runes := []rune(text)
	if len(runes) <= s.cfg.MaxChunkChars {
		return nil
	}

	var chunks []Chunk
	for len(runes) > 0 {
		cut := min(s.cfg.MaxChunkChars, len(runes))
		if cut < len(runes) {
			cut = snapToBreak(runes, cut)
		}
		chunks = append(chunks, Chunk{
			Title:    fmt.Sprintf("第%d段", len(chunks)+1),
			RawTitle: fmt.Sprintf("window-%d", len(chunks)+1),
			Content:  strings.TrimSpace(string(runes[:cut])),
		})
		runes = runes[cut:]
	}
	return chunks
}

// snapToBreak searches backward from cut for a paragraph break, then for a
// line break, within the first half of the window. Returns the position
// just after the break, or cut unchanged when none is found.
func snapToBreak(runes []rune, cut int) int {
	floor := cut / 2
	for i := cut - 1; i > floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := cut - 1; i > floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return cut
}

// MergeSmall folds any chunk shorter than MinChunkChars into the chunk that
// follows it, provided the combined length stays within MaxChunkChars.
// Titles are joined with " / " to preserve provenance. The result is never
// empty when chunks is non-empty.
func (s *Segmenter) MergeSmall(chunks []Chunk) []Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	var out []Chunk
	i := 0
	for i < len(chunks) {
		cur := chunks[i]
		for i+1 < len(chunks) &&
			utf8.RuneCountInString(cur.Content) < s.cfg.MinChunkChars &&
			utf8.RuneCountInString(cur.Content)+utf8.RuneCountInString(chunks[i+1].Content) <= s.cfg.MaxChunkChars {
			next := chunks[i+1]
			cur = Chunk{
				Title:    cur.Title + " / " + next.Title,
				RawTitle: cur.RawTitle + " / " + next.RawTitle,
				Content:  cur.Content + "\n\n" + next.Content,
			}
			i++
		}
		out = append(out, cur)
		i++
	}
	return out
}

// splitParagraphs splits text on blank-line boundaries, dropping empty
// entries.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
