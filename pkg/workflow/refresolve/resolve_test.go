package refresolve

import (
	"reflect"
	"testing"
)

type fakeState map[string]interface{}

func (f fakeState) Get(path string) (interface{}, bool) {
	v, ok := f[path]
	return v, ok
}

func TestResolverFidelityNoReferences(t *testing.T) {
	state := fakeState{}
	values := []interface{}{
		"plain string",
		float64(42),
		true,
		nil,
		map[string]interface{}{"a": float64(1), "b": "x"},
		[]interface{}{float64(1), "two", false},
	}
	for _, v := range values {
		got := Resolve(v, state)
		if !reflect.DeepEqual(got, v) {
			t.Errorf("Resolve(%v) = %v, want unchanged %v", v, got, v)
		}
	}
}

func TestResolverSingletonPreservesType(t *testing.T) {
	state := fakeState{"w.body.x": float64(42)}
	got := Resolve("<<w.body.x>>", state)
	if got != float64(42) {
		t.Fatalf("got %v (%T), want float64(42)", got, got)
	}
}

func TestResolverSingletonPreservesObject(t *testing.T) {
	obj := map[string]interface{}{"id": "42"}
	state := fakeState{"w.body": obj}
	got := Resolve("<<w.body>>", state)
	if !reflect.DeepEqual(got, obj) {
		t.Fatalf("got %v, want %v", got, obj)
	}
}

func TestResolverMixedContextString(t *testing.T) {
	state := fakeState{"w.body.id": "42"}
	got := Resolve("https://api/<<w.body.id>>", state)
	if got != "https://api/42" {
		t.Fatalf("got %v, want https://api/42", got)
	}
}

func TestResolverMixedContextNumberSplice(t *testing.T) {
	state := fakeState{"a.x": float64(10)}
	got := Resolve("value is <<a.x>> units", state)
	if got != "value is 10 units" {
		t.Fatalf("got %v, want %q", got, "value is 10 units")
	}
}

func TestResolverUnresolvedYieldsEmptyString(t *testing.T) {
	state := fakeState{}
	got := Resolve("<<missing.path>>", state)
	if got != "" {
		t.Fatalf("got %v, want empty string", got)
	}
}

func TestResolverDistinctAdjacentReferences(t *testing.T) {
	state := fakeState{"a.x": "1", "b.y": "2"}
	got := Resolve("<<a.x>> and <<b.y>>", state)
	if got != "1 and 2" {
		t.Fatalf("got %v, want %q", got, "1 and 2")
	}
}

func TestResolveNested(t *testing.T) {
	state := fakeState{"w.body.id": "42"}
	in := map[string]interface{}{
		"url":     "https://api/<<w.body.id>>",
		"nested":  []interface{}{"<<w.body.id>>"},
	}
	got := Resolve(in, state).(map[string]interface{})
	if got["url"] != "https://api/42" {
		t.Fatalf("url = %v", got["url"])
	}
	arr := got["nested"].([]interface{})
	if arr[0] != "42" {
		t.Fatalf("nested[0] = %v (%T), want string 42", arr[0], arr[0])
	}
}
