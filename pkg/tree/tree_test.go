package tree

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jmake-zxb/jk-ui/pkg/models"
)

func ids(nodes []models.Record) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n["id"])
	}
	return out
}

func TestBuildBasic(t *testing.T) {
	records := []models.Record{
		{"id": 1, "parentId": 0, "name": "root"},
		{"id": 2, "parentId": 1, "name": "a"},
		{"id": 3, "parentId": 1, "name": "b"},
		{"id": 4, "parentId": 2, "name": "a1"},
	}

	got := Build(records, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 root, got %d", len(got))
	}
	root := got[0]
	kids := root.Children("children")
	if !reflect.DeepEqual(ids(kids), []any{2, 3}) {
		t.Errorf("root children = %v", ids(kids))
	}
	if grand := kids[0].Children("children"); len(grand) != 1 || grand[0]["id"] != 4 {
		t.Errorf("unexpected grandchildren: %v", grand)
	}
	if _, ok := kids[1]["children"]; ok {
		t.Error("leaf should not carry a children field")
	}
	if n := Count(got, ""); n != len(records) {
		t.Errorf("Count = %d, want %d", n, len(records))
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	records := []models.Record{
		{"id": 1, "parentId": 0, "tags": []any{"x"}},
		{"id": 2, "parentId": 1},
	}
	got := Build(records, Options{})

	if _, ok := records[0]["children"]; ok {
		t.Fatal("input record gained a children field")
	}
	got[0]["tags"].([]any)[0] = "changed"
	if records[0]["tags"].([]any)[0] != "x" {
		t.Error("output aliases input slices")
	}
}

func TestBuildEmpty(t *testing.T) {
	got := Build(nil, Options{})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestBuildNoRootReturnsCopy(t *testing.T) {
	records := []models.Record{
		{"id": 5, "parentId": 9},
		{"id": 6, "parentId": 10},
	}
	got := Build(records, Options{Root: 100})
	if !reflect.DeepEqual(ids(got), []any{5, 6}) {
		t.Fatalf("expected flat copy, got %v", ids(got))
	}
	for _, n := range got {
		if _, ok := n["children"]; ok {
			t.Error("flat copy should not carry children")
		}
	}
	got[0]["id"] = 99
	if records[0]["id"] != 5 {
		t.Error("flat copy aliases input")
	}
}

func TestBuildRootHeuristic(t *testing.T) {
	tests := []struct {
		name    string
		records []models.Record
		roots   []any
	}{
		{
			name: "minimum numeric parent",
			records: []models.Record{
				{"id": 10, "parentId": 5},
				{"id": 11, "parentId": 10},
				{"id": 12, "parentId": 5},
			},
			roots: []any{10, 12},
		},
		{
			name: "non-numeric parent falls back to zero",
			records: []models.Record{
				{"id": "a", "parentId": "x"},
				{"id": "b", "parentId": 0},
			},
			roots: []any{"b"},
		},
		{
			name: "missing parent falls back to zero",
			records: []models.Record{
				{"id": 1},
				{"id": 2, "parentId": 0},
			},
			roots: []any{2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.records, Options{})
			if !reflect.DeepEqual(ids(got), tt.roots) {
				t.Errorf("roots = %v, want %v", ids(got), tt.roots)
			}
		})
	}
}

func TestBuildExplicitRootAndFields(t *testing.T) {
	records := []models.Record{
		{"key": "root", "up": "-", "label": "Root"},
		{"key": "child", "up": "root"},
	}
	got := Build(records, Options{IDField: "key", ParentIDField: "up", ChildrenField: "items", Root: "-"})
	if len(got) != 1 || got[0]["key"] != "root" {
		t.Fatalf("unexpected roots: %v", got)
	}
	if kids := got[0].Children("items"); len(kids) != 1 || kids[0]["key"] != "child" {
		t.Errorf("unexpected children: %v", kids)
	}
}

func TestBuildDecodedJSONKeys(t *testing.T) {
	var records []models.Record
	data := `[{"id":"1","parentId":0},{"id":2,"parentId":"1"},{"id":3,"parentId":1}]`
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		t.Fatal(err)
	}
	got := Build(records, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 root, got %d", len(got))
	}
	if kids := got[0].Children("children"); len(kids) != 2 {
		t.Errorf("expected numeric and string parent ids to match, got %d children", len(kids))
	}
}

func TestBuildCycleTerminates(t *testing.T) {
	records := []models.Record{
		{"id": 1, "parentId": 2},
		{"id": 2, "parentId": 1},
	}
	got := Build(records, Options{Root: 1})
	if len(got) != 1 || got[0]["id"] != 2 {
		t.Fatalf("unexpected roots: %v", ids(got))
	}
	kids := got[0].Children("children")
	if len(kids) != 1 || kids[0]["id"] != 1 {
		t.Fatalf("unexpected children: %v", ids(kids))
	}
	if _, ok := kids[0]["children"]; ok {
		t.Error("cycle should be cut below the repeated node")
	}
}

func TestBuildPreservesOrder(t *testing.T) {
	var records []models.Record
	records = append(records, models.Record{"id": 0, "parentId": -1})
	for i := 1; i <= 20; i++ {
		records = append(records, models.Record{"id": i, "parentId": 0})
	}
	got := Build(records, Options{Root: -1})
	kids := got[0].Children("children")
	for i, k := range kids {
		if k["id"] != i+1 {
			t.Fatalf("child %d has id %v", i, k["id"])
		}
	}
	if Count(got, "children") != len(records) {
		t.Errorf("count mismatch")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		a, b  any
		equal bool
	}{
		{1, 1.0, true},
		{1, "1", true},
		{int64(7), json.Number("7"), true},
		{"a", "a", true},
		{"a", "b", false},
		{nil, 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		if got := Key(tt.a) == Key(tt.b); got != tt.equal {
			t.Errorf("Key(%v) == Key(%v) = %v, want %v", tt.a, tt.b, got, tt.equal)
		}
	}
}

func TestFindByID(t *testing.T) {
	forest := Build([]models.Record{
		{"id": 1, "parentId": 0},
		{"id": 2, "parentId": 1, "name": "deep"},
	}, Options{})

	if n := FindByID(forest, Options{}, "2"); n == nil || n["name"] != "deep" {
		t.Errorf("FindByID(2) = %v", n)
	}
	if n := FindByID(forest, Options{}, 42); n != nil {
		t.Errorf("FindByID(42) should be nil, got %v", n)
	}
}

func TestFlatten(t *testing.T) {
	forest := Build([]models.Record{
		{"id": 1, "parentId": 0},
		{"id": 2, "parentId": 1},
		{"id": 3, "parentId": 0},
	}, Options{})
	flat := Flatten(forest, "")
	if !reflect.DeepEqual(ids(flat), []any{1, 2, 3}) {
		t.Errorf("Flatten order = %v", ids(flat))
	}
	for _, n := range flat {
		if _, ok := n["children"]; ok {
			t.Error("flattened node kept children")
		}
	}
}

func TestWalkPrune(t *testing.T) {
	forest := Build([]models.Record{
		{"id": 1, "parentId": 0},
		{"id": 2, "parentId": 1},
		{"id": 3, "parentId": 2},
	}, Options{})
	var seen []any
	Walk(forest, "", func(n models.Record, depth int) bool {
		seen = append(seen, n["id"])
		return depth < 1
	})
	if !reflect.DeepEqual(seen, []any{1, 2}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestLeafIDs(t *testing.T) {
	forest := Build([]models.Record{
		{"id": 1, "parentId": 0},
		{"id": 2, "parentId": 1},
		{"id": 3, "parentId": 1},
		{"id": 4, "parentId": 0},
	}, Options{})
	got := LeafIDs(forest, Options{}, []any{1, 2, 4, 99})
	if !reflect.DeepEqual(got, []any{2, 4}) {
		t.Errorf("LeafIDs = %v", got)
	}
}
