package textsplit

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

const DefaultMaxChunkLen = 300

// Chunk splits text into sentence-boundary-aware chunks. Sentences are packed
// greedily: a chunk closes once appending the next sentence would push it past
// maxLen. A single sentence longer than maxLen becomes its own oversized chunk
// rather than being cut mid-sentence.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLen
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(sentence) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(
		text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err == nil {
		sents := doc.Sentences()
		out := make([]string, 0, len(sents))
		for _, s := range sents {
			out = append(out, s.Text)
		}
		if len(out) > 0 {
			return out
		}
	}

	// Crude period split keeps the pipeline alive if segmentation fails.
	parts := strings.Split(text, ". ")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, ".") {
			p += "."
		}
		out = append(out, p)
	}
	return out
}
