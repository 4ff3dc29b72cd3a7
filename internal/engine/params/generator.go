// Package params draws concrete parameter values for a presentation of a
// question.
package params

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

// Generator picks one value per parameter, uniformly and independently. It is
// safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from src.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewRandomGenerator returns a Generator with an unpredictable seed.
func NewRandomGenerator() *Generator {
	return NewGenerator(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeededGenerator returns a Generator whose draws are fully determined by
// the given parts, so a parameter map can be regenerated later.
func NewSeededGenerator(parts ...string) *Generator {
	hi, lo := DeriveSeed(parts...)
	return NewGenerator(rand.NewPCG(hi, lo))
}

// DeriveSeed hashes parts into a 128-bit PCG seed.
func DeriveSeed(parts ...string) (uint64, uint64) {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Generate draws a ParameterMap for params. Number parameters are coerced to
// float64; text parameters keep their value as a string.
func (g *Generator) Generate(params []model.Parameter) (model.ParameterMap, error) {
	pm := make(model.ParameterMap, len(params))
	if len(params) == 0 {
		return pm, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range params {
		if len(p.PossibleValues) == 0 {
			return nil, fmt.Errorf("parameter %q has no possible values", p.Name)
		}
		v := p.PossibleValues[g.rng.IntN(len(p.PossibleValues))]
		cv, err := Coerce(p, v)
		if err != nil {
			return nil, err
		}
		pm[p.Name] = cv
	}
	return pm, nil
}

// Shuffle permutes n elements using the generator's source.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}

// Sample returns k distinct indexes out of n in random order. When k >= n
// every index is returned.
func (g *Generator) Sample(n, k int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	perm := g.rng.Perm(n)
	if k < n {
		perm = perm[:k]
	}
	return perm
}

// Coerce converts a possible value to the representation its parameter's
// semantic type requires.
func Coerce(p model.Parameter, v any) (any, error) {
	switch p.Type {
	case model.SemanticTypeNumber:
		f, ok := template.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("parameter %q: value %v is not a number", p.Name, v)
		}
		return f, nil
	case model.SemanticTypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q: value %v is not text", p.Name, v)
		}
		return s, nil
	}
	return nil, fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
}
