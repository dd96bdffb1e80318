package model

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"docchat/types"

	"github.com/cespare/xxhash/v2"
)

const DefaultHashDim = 512

// HashEmbedder is an offline bag-of-words embedder using the hashing trick.
// Texts sharing words get close vectors; it needs no network and is deterministic.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) (*HashEmbedder, error) {
	if dim == 0 {
		dim = DefaultHashDim
	}
	if dim < 0 {
		return nil, fmt.Errorf("%w: hash embedder dimension must be positive", types.ErrConfiguration)
	}
	return &HashEmbedder{dim: dim}, nil
}

func (e *HashEmbedder) Name() string {
	return "hash/" + strconv.Itoa(e.dim)
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range Tokenize(text) {
		h := xxhash.Sum64String(tok)
		sign := float32(1)
		if h>>63 == 1 {
			sign = -1
		}
		vec[h%uint64(e.dim)] += sign
	}
	normalize(vec)
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i, x := range vec {
		vec[i] = float32(float64(x) / norm)
	}
}
