package params

import (
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/stemsi/quizengine/internal/model"
)

func testParams() []model.Parameter {
	return []model.Parameter{
		{Name: "a", Type: model.SemanticTypeNumber, PossibleValues: []any{"1", "2", 3.0, 4.5}},
		{Name: "name", Type: model.SemanticTypeText, PossibleValues: []any{"Ana", "Bo"}},
	}
}

func TestGenerateDrawsFromPossibleValues(t *testing.T) {
	g := NewGenerator(rand.NewPCG(1, 2))
	allowedA := []float64{1, 2, 3, 4.5}
	allowedName := []string{"Ana", "Bo"}

	for range 200 {
		pm, err := g.Generate(testParams())
		if err != nil {
			t.Fatal(err)
		}
		a, ok := pm["a"].(float64)
		if !ok || !slices.Contains(allowedA, a) {
			t.Fatalf("a = %#v", pm["a"])
		}
		name, ok := pm["name"].(string)
		if !ok || !slices.Contains(allowedName, name) {
			t.Fatalf("name = %#v", pm["name"])
		}
	}
}

func TestGenerateCoversEveryValue(t *testing.T) {
	g := NewGenerator(rand.NewPCG(7, 7))
	p := []model.Parameter{{Name: "x", Type: model.SemanticTypeNumber, PossibleValues: []any{1.0, 2.0, 3.0}}}

	seen := map[float64]int{}
	for range 300 {
		pm, err := g.Generate(p)
		if err != nil {
			t.Fatal(err)
		}
		seen[pm["x"].(float64)]++
	}
	if len(seen) != 3 {
		t.Errorf("got %v, want all three values drawn", seen)
	}
}

func TestGenerateSingleValued(t *testing.T) {
	g := NewRandomGenerator()
	p := []model.Parameter{
		{Name: "a", Type: model.SemanticTypeNumber, PossibleValues: []any{"5"}},
		{Name: "b", Type: model.SemanticTypeNumber, PossibleValues: []any{"5"}},
	}
	want := model.ParameterMap{"a": 5.0, "b": 5.0}
	for range 10 {
		pm, err := g.Generate(p)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(pm, want) {
			t.Fatalf("got %v, want %v", pm, want)
		}
	}
}

func TestGenerateRejectsBadValues(t *testing.T) {
	g := NewRandomGenerator()
	tests := []struct {
		name string
		p    model.Parameter
	}{
		{"empty", model.Parameter{Name: "a", Type: model.SemanticTypeNumber}},
		{"non numeric", model.Parameter{Name: "a", Type: model.SemanticTypeNumber, PossibleValues: []any{"x"}}},
		{"non text", model.Parameter{Name: "a", Type: model.SemanticTypeText, PossibleValues: []any{1.0}}},
		{"unknown type", model.Parameter{Name: "a", Type: "date", PossibleValues: []any{"x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Generate([]model.Parameter{tt.p}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSeededGeneratorIsDeterministic(t *testing.T) {
	p := []model.Parameter{{Name: "x", Type: model.SemanticTypeNumber, PossibleValues: []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0}}}

	draw := func(parts ...string) []float64 {
		g := NewSeededGenerator(parts...)
		var out []float64
		for range 16 {
			pm, err := g.Generate(p)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, pm["x"].(float64))
		}
		return out
	}

	first := draw("salt", "attempt-1", "question-1")
	if again := draw("salt", "attempt-1", "question-1"); !slices.Equal(first, again) {
		t.Errorf("same seed parts produced %v and %v", first, again)
	}
	if other := draw("salt", "attempt-2", "question-1"); slices.Equal(first, other) {
		t.Errorf("different attempts produced the same sequence %v", first)
	}
}

func TestDeriveSeedSeparatesParts(t *testing.T) {
	h1, l1 := DeriveSeed("ab", "c")
	h2, l2 := DeriveSeed("a", "bc")
	if h1 == h2 && l1 == l2 {
		t.Error("part boundaries must affect the seed")
	}
}

func TestSample(t *testing.T) {
	g := NewGenerator(rand.NewPCG(3, 4))

	got := g.Sample(10, 4)
	if len(got) != 4 {
		t.Fatalf("got %d indexes, want 4", len(got))
	}
	seen := map[int]bool{}
	for _, i := range got {
		if i < 0 || i >= 10 || seen[i] {
			t.Fatalf("bad sample %v", got)
		}
		seen[i] = true
	}

	if all := g.Sample(3, 5); len(all) != 3 {
		t.Errorf("got %v, want every index", all)
	}
}
