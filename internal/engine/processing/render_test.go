package processing

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/stemsi/quizengine/internal/engine/template"
	"github.com/stemsi/quizengine/internal/model"
)

func lotIDs(view *model.RenderView) []string {
	ids := make([]string, 0, len(view.LotItems))
	for _, item := range view.LotItems {
		ids = append(ids, item.ID)
	}
	slices.Sort(ids)
	return ids
}

func TestRenderPlainIsStable(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			q := build()
			first, pm, err := p.Render(q, nil)
			if err != nil {
				t.Fatal(err)
			}
			if pm != nil || first.ParameterMap != nil {
				t.Errorf("plain question must not carry a map, got %v", pm)
			}
			if first.Text != q.Text || first.Hint != q.Hint {
				t.Errorf("text changed: %q / %q", first.Text, first.Hint)
			}
			for range 3 {
				again, _, err := p.Render(q, nil)
				if err != nil {
					t.Fatal(err)
				}
				if !reflect.DeepEqual(first, again) {
					t.Fatalf("renders differ:\n%+v\n%+v", first, again)
				}
			}
		})
	}
}

func TestRenderSingleValuedRoundTrip(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			q := parameterize(build())
			first, _, err := p.Render(q, nil)
			if err != nil {
				t.Fatal(err)
			}
			second, _, err := p.Render(q, nil)
			if err != nil {
				t.Fatal(err)
			}
			if first.Text != second.Text {
				t.Errorf("got %q and %q", first.Text, second.Text)
			}
			if !strings.HasSuffix(first.Text, "Use a = 5 and a + b = 10.") {
				t.Errorf("text not substituted: %q", first.Text)
			}
		})
	}
}

func TestRenderGeneratesMapWhenMissing(t *testing.T) {
	p := newTestProcessor()
	q := parameterize(numericQuestion(), 1.0, 2.0, 3.0)

	view, pm, err := p.Render(q, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pm) != 2 {
		t.Fatalf("got map %v, want a and b", pm)
	}
	for _, name := range []string{"a", "b"} {
		v, ok := pm[name].(float64)
		if !ok || v < 1 || v > 3 {
			t.Errorf("%s = %#v", name, pm[name])
		}
	}
	if !reflect.DeepEqual(view.ParameterMap, pm) {
		t.Errorf("view map %v differs from returned map %v", view.ParameterMap, pm)
	}
}

func TestRenderUsesSuppliedMap(t *testing.T) {
	p := newTestProcessor()
	q := parameterize(selectOneQuestion(), 1.0, 2.0)
	pm := model.ParameterMap{"a": 2.0, "b": 1.0}

	view, got, err := p.Render(q, pm)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, pm) {
		t.Errorf("got map %v, want %v", got, pm)
	}
	if !strings.HasSuffix(view.Text, "Use a = 2 and a + b = 3.") {
		t.Errorf("text = %q", view.Text)
	}
	var found bool
	for _, item := range view.LotItems {
		if item.ID == "A" {
			found = item.Text == "2"
		}
	}
	if !found {
		t.Errorf("correct lot item not substituted: %+v", view.LotItems)
	}
}

func TestRenderMissingParameter(t *testing.T) {
	p := newTestProcessor()
	q := parameterize(descriptiveQuestion())

	_, _, err := p.Render(q, model.ParameterMap{"a": 1.0})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("got %v, want RenderError", err)
	}
	if !errors.Is(err, template.ErrMissingParameter) || re.Field != "text" {
		t.Errorf("got %v (field %q)", err, re.Field)
	}
}

func TestRenderLotItems(t *testing.T) {
	p := newTestProcessor()

	t.Run("select hides explanations", func(t *testing.T) {
		view, _, err := p.Render(selectOneQuestion(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := lotIDs(view); !slices.Equal(got, []string{"A", "B", "C"}) {
			t.Errorf("lot ids = %v", got)
		}
		for _, item := range view.LotItems {
			if item.Explanation != "" {
				t.Errorf("explanation leaked for %s", item.ID)
			}
		}
	})

	t.Run("order keeps substituted explanations", func(t *testing.T) {
		q := parameterize(orderQuestion())
		view, _, err := p.Render(q, model.ParameterMap{"a": 3.0, "b": 4.0})
		if err != nil {
			t.Fatal(err)
		}
		if got := lotIDs(view); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
			t.Errorf("lot ids = %v", got)
		}
		for _, item := range view.LotItems {
			if item.ID == "A" && item.Explanation != `$\frac{3}{4}$ is smallest` {
				t.Errorf("explanation = %q", item.Explanation)
			}
		}
	})

	t.Run("numeric carries precision only", func(t *testing.T) {
		q := numericQuestion()
		q.Solution.DecimalPrecision = 2
		view, _, err := p.Render(q, nil)
		if err != nil {
			t.Fatal(err)
		}
		if view.DecimalPrecision == nil || *view.DecimalPrecision != 2 {
			t.Errorf("decimal precision = %v", view.DecimalPrecision)
		}
		if view.LotItems != nil {
			t.Errorf("unexpected lot items %v", view.LotItems)
		}
	})
}

func TestRenderDoesNotLeakSolution(t *testing.T) {
	p := newTestProcessor()
	for typ, build := range allQuestions() {
		t.Run(string(typ), func(t *testing.T) {
			view, _, err := p.Render(parameterize(build()), nil)
			if err != nil {
				t.Fatal(err)
			}
			raw, err := json.Marshal(view)
			if err != nil {
				t.Fatal(err)
			}
			for _, key := range []string{"solution", "correct_lot_item", "ordering", "expression", `"value"`, "order\"", "Rayleigh"} {
				if strings.Contains(string(raw), key) {
					t.Errorf("view leaks %s: %s", key, raw)
				}
			}
		})
	}
}

func TestRenderOrderSeed(t *testing.T) {
	p := newTestProcessor()
	q := orderQuestion()

	order := func(opts ...RenderOption) string {
		t.Helper()
		view, _, err := p.Render(q, nil, opts...)
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]string, 0, len(view.LotItems))
		for _, item := range view.LotItems {
			ids = append(ids, item.ID)
		}
		return strings.Join(ids, "")
	}

	if a, b := order(WithOrderSeed("attempt-1")), order(WithOrderSeed("attempt-1")); a != b {
		t.Errorf("same seed gave %s and %s", a, b)
	}

	seen := map[string]bool{}
	for i := range 20 {
		seen[order(WithOrderSeed(fmt.Sprintf("attempt-%d", i)))] = true
	}
	if len(seen) < 2 {
		t.Errorf("20 attempts all saw order %v", seen)
	}
}
