package element_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/periodix/pkg/element"
)

func TestEmbedded(t *testing.T) {
	ds, err := element.Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	if ds.Len() != 20 {
		t.Errorf("Len = %d, want 20", ds.Len())
	}

	o, ok := ds.ByNumber(8)
	if !ok {
		t.Fatal("ByNumber(8) not found")
	}
	if o.Symbol != "O" || o.Name != "أكسجين" || o.NameEn != "Oxygen" {
		t.Errorf("element 8 = %+v", o)
	}
	if o.GroupBlock != element.DiatomicNonmetal {
		t.Errorf("group block = %q", o.GroupBlock)
	}

	na, ok := ds.BySymbol("Na")
	if !ok || na.Number != 11 {
		t.Errorf("BySymbol(Na) = %+v, %v", na, ok)
	}
	if _, ok := ds.ByNumber(118); ok {
		t.Error("ByNumber(118) found in 20-element dataset")
	}
}

func TestDataset_ReturnsCopies(t *testing.T) {
	ds, err := element.Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	all := ds.All()
	all[0].Name = "changed"
	all[0].Electrons[0] = 99

	h, _ := ds.ByNumber(1)
	if h.Name == "changed" || h.Electrons[0] == 99 {
		t.Error("mutating All() leaked into the dataset")
	}
}

func TestGroupBlock_Label(t *testing.T) {
	if got := element.AlkalineEarthMetal.Label(); got != "alkaline earth metal" {
		t.Errorf("Label = %q", got)
	}
}

func valid(n int, sym, name string) element.Element {
	shells := []int{n}
	return element.Element{
		Number: n, Symbol: sym, Name: name, OrbitalType: "s",
		Electrons: shells, GroupBlock: element.Nonmetal, Row: 1, Col: n,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		elements []element.Element
		wantErr  string
	}{
		{name: "ok", elements: []element.Element{valid(1, "H", "a"), valid(2, "He", "b")}},
		{name: "empty", elements: nil, wantErr: "empty"},
		{name: "duplicate number", elements: []element.Element{valid(1, "H", "a"), valid(1, "X", "b")}, wantErr: "number 1 duplicates"},
		{name: "duplicate name", elements: []element.Element{valid(1, "H", "a"), valid(2, "He", "a")}, wantErr: "name \"a\" duplicates"},
		{name: "duplicate symbol", elements: []element.Element{valid(1, "H", "a"), valid(2, "H", "b")}, wantErr: "symbol \"H\" duplicates"},
		{name: "bad shells", elements: func() []element.Element {
			e := valid(3, "Li", "c")
			e.Electrons = []int{2}
			return []element.Element{e}
		}(), wantErr: "sum to 2"},
		{name: "bad group", elements: func() []element.Element {
			e := valid(1, "H", "a")
			e.GroupBlock = "gas"
			return []element.Element{e}
		}(), wantErr: "not recognised"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := element.Validate(tt.elements)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := element.Load(strings.NewReader("elements:\n  - number: 1\n    colour: red\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elements.yaml")
	data := `elements:
  - number: 1
    symbol: H
    name: هيدروجين
    orbital_type: s
    electrons: [1]
    group_block: diatomic-nonmetal
    row: 1
    col: 1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	ds, err := element.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.Len() != 1 {
		t.Errorf("Len = %d, want 1", ds.Len())
	}

	_, err = element.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", err)
	}
}
