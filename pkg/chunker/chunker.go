// Package chunker splits extracted document text into bounded-size chunks.
//
// Chunks are the unit of embedding and retrieval: each becomes one vector in
// the index. Splitting is greedy on whitespace-delimited words with no
// overlap, so joining the chunks back with single spaces reproduces the
// original word sequence exactly.
package chunker

import "strings"

// DefaultMaxWords is the word-count ceiling per chunk when the caller
// doesn't configure one.
const DefaultMaxWords = 500

// Split divides text into chunks of at most maxWords words each.
// Every chunk except possibly the last holds exactly maxWords words.
// Returns nil for text with no words.
func Split(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
