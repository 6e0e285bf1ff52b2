package budget

import (
	"strings"
	"unicode/utf8"

	"repobrief/internal/types"
)

// Estimator approximates token counts as ceil(bytes / bytesPerToken).
type Estimator struct {
	bytesPerToken int
}

// NewEstimator returns an estimator; values below 1 fall back to 4.
func NewEstimator(bytesPerToken int) Estimator {
	if bytesPerToken < 1 {
		bytesPerToken = 4
	}
	return Estimator{bytesPerToken: bytesPerToken}
}

// Tokens estimates the token count of s. It is monotonic in len(s).
func (e Estimator) Tokens(s string) int {
	n := len(s)
	if n == 0 {
		return 0
	}
	bpt := e.bytesPerToken
	if bpt < 1 {
		bpt = 4
	}
	return (n + bpt - 1) / bpt
}

// Bytes is the largest byte length that still estimates to at most tokens.
func (e Estimator) Bytes(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	bpt := e.bytesPerToken
	if bpt < 1 {
		bpt = 4
	}
	return tokens * bpt
}

// Split cuts text into chunks that each estimate to at most maxTokens.
// Cuts happen at line ends when possible; a single line longer than a chunk
// is split at rune boundaries. Concatenating the chunk texts yields text.
func (e Estimator) Split(text string, maxTokens int) []types.Chunk {
	if text == "" {
		return nil
	}
	limit := e.Bytes(maxTokens)
	if limit < utf8.UTFMax {
		limit = utf8.UTFMax
	}

	var (
		out []types.Chunk
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		out = append(out, types.Chunk{Text: s, EstimatedTokens: e.Tokens(s)})
		cur.Reset()
	}

	for rest := text; rest != ""; {
		line := rest
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i+1]
		}
		rest = rest[len(line):]

		if cur.Len()+len(line) <= limit {
			cur.WriteString(line)
			continue
		}
		flush()
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(line)
			}
			out = append(out, types.Chunk{Text: line[:cut], EstimatedTokens: e.Tokens(line[:cut])})
			line = line[cut:]
		}
		cur.WriteString(line)
	}
	flush()
	return out
}
