package mono

import (
	"testing"

	"tea/internal/check"
	"tea/internal/diag"
	"tea/internal/parser"
	"tea/internal/resolve"
	"tea/internal/stdlib"
	"tea/internal/types"
)

func buildRegistry(t *testing.T, src string) *Registry {
	t.Helper()
	sink := diag.NewSink()
	defer sink.Stop()
	mod := parser.Parse(0, src, sink)
	std, err := stdlib.Load()
	if err != nil {
		t.Fatalf("loading stdlib snapshot: %s", err)
	}
	res := resolve.New(sink, nil, std, 0).Resolve(mod)
	c := check.New(sink, std, res)
	c.Check(mod)
	if sink.HardFailed() {
		t.Fatalf("source failed checking: %v", sink.Diagnostics())
	}
	return Build(mod, c)
}

const genericID = "def id[T](v: T) -> T\n  return v\nend\n"

// TestSpecializationPerTypeTuple verifies one specialization per distinct
// concrete instantiation and deduplication of repeats.
func TestSpecializationPerTypeTuple(t *testing.T) {
	reg := buildRegistry(t, genericID+"@println(id(42))\n@println(id(\"tea\"))\n@println(id(7))\n")
	if len(reg.Funcs) != 2 {
		t.Fatalf("expected 2 specializations of id, got %d", len(reg.Funcs))
	}
	kinds := map[types.Kind]bool{}
	for _, spec := range reg.Funcs {
		if spec.FuncName != "id" || len(spec.TypeArgs) != 1 {
			t.Fatalf("unexpected specialization %+v", spec)
		}
		kinds[spec.TypeArgs[0].Kind] = true
	}
	if !kinds[types.KInt] || !kinds[types.KString] {
		t.Fatalf("expected Int and String instantiations, got %v", kinds)
	}
}

// TestTransitiveDiscovery verifies generic calls inside a generic body are
// discovered through the worklist.
func TestTransitiveDiscovery(t *testing.T) {
	src := genericID +
		"def wrap[T](v: T) -> T\n  return id(v)\nend\n" +
		"@println(wrap(1))\n"
	reg := buildRegistry(t, src)
	var names []string
	for _, spec := range reg.Funcs {
		names = append(names, spec.FuncName)
	}
	if len(reg.Funcs) != 2 {
		t.Fatalf("expected wrap[Int] and id[Int], got %v", names)
	}
}

// TestDeterministicIDs verifies identical inputs produce identical
// specialization ids across independent runs.
func TestDeterministicIDs(t *testing.T) {
	src := genericID + "@println(id(42))\n"
	a := buildRegistry(t, src)
	b := buildRegistry(t, src)
	if len(a.Funcs) != 1 || len(b.Funcs) != 1 {
		t.Fatalf("expected one specialization per run, got %d and %d", len(a.Funcs), len(b.Funcs))
	}
	var idA, idB string
	for id := range a.Funcs {
		idA = id
	}
	for id := range b.Funcs {
		idB = id
	}
	if idA != idB {
		t.Errorf("specialization ids differ across runs: %q vs %q", idA, idB)
	}
}

// TestLookup verifies the lowerer-facing lookup by name and canonical type
// tuple.
func TestLookup(t *testing.T) {
	reg := buildRegistry(t, genericID+"@println(id(42))\n")
	if _, ok := reg.Lookup("id", []*types.Type{types.Int}); !ok {
		t.Error("Lookup(id, [Int]) should find the registered specialization")
	}
	if _, ok := reg.Lookup("id", []*types.Type{types.Float}); ok {
		t.Error("Lookup(id, [Float]) should miss")
	}
}

// TestTestDeclIsEntryPoint verifies test bodies seed the worklist.
func TestTestDeclIsEntryPoint(t *testing.T) {
	reg := buildRegistry(t, genericID+"test \"ids\"\n  @println(id(1))\nend\n")
	if len(reg.Funcs) != 1 {
		t.Fatalf("expected the test body to instantiate id[Int], got %d specializations", len(reg.Funcs))
	}
}
