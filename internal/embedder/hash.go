package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
)

// DefaultHashDimensions is used when NewHash is given a non-positive size.
const DefaultHashDimensions = 384

// Hash is an offline feature-hashing embedder. Unigrams and adjacent
// bigrams are hashed (FNV-1a) into signed buckets and the result is
// L2-normalized, so cosine similarity tracks shared vocabulary.
type Hash struct {
	dims int
}

// NewHash creates a Hash embedder with dims buckets.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &Hash{dims: dims}
}

func (h *Hash) Dimensions() int { return h.dims }
func (h *Hash) Name() string    { return "hash" }

// Embed implements Embedder.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := apperr.FromContext(ctx); err != nil {
		return nil, err
	}
	if normalizeText(text) == "" {
		return nil, emptyInput()
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, apperr.New(apperr.EmptyInput, "text has no indexable tokens")
	}

	vec := make([]float64, h.dims)
	for i, tok := range tokens {
		h.add(vec, tok, 1.0)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	out := normalize(vec)
	if err := checkVector(h.Name(), out, h.dims); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Hash) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := sum % uint64(h.dims)
	// The top bit picks the sign so colliding features tend to cancel.
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lowercases text and splits it into letter/digit runs.
func tokenize(text string) []string {
	var words []string
	var word strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}
	return words
}

// normalize scales vec to unit length. A zero vector (all features
// cancelled) gets a single unit component so the output stays usable.
func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
