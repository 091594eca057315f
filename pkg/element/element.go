// Package element holds the static periodic-table dataset: element records,
// the embedded YAML source they are loaded from, and lookups over the
// immutable collection.
package element

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// GroupBlock is the categorical family an element belongs to.
type GroupBlock string

// Group blocks known to the dataset.
const (
	AlkaliMetal         GroupBlock = "alkali-metal"
	AlkalineEarthMetal  GroupBlock = "alkaline-earth-metal"
	Lanthanide          GroupBlock = "lanthanide"
	Actinide            GroupBlock = "actinide"
	TransitionMetal     GroupBlock = "transition-metal"
	PostTransitionMetal GroupBlock = "post-transition-metal"
	Metalloid           GroupBlock = "metalloid"
	Nonmetal            GroupBlock = "nonmetal"
	Halogen             GroupBlock = "halogen"
	NobleGas            GroupBlock = "noble-gas"
	DiatomicNonmetal    GroupBlock = "diatomic-nonmetal"
	PolyatomicNonmetal  GroupBlock = "polyatomic-nonmetal"
)

var groupBlocks = []GroupBlock{
	AlkaliMetal, AlkalineEarthMetal, Lanthanide, Actinide, TransitionMetal,
	PostTransitionMetal, Metalloid, Nonmetal, Halogen, NobleGas,
	DiatomicNonmetal, PolyatomicNonmetal,
}

// IsValid reports whether g is a recognised group block.
func (g GroupBlock) IsValid() bool {
	return slices.Contains(groupBlocks, g)
}

// Label returns the tag with dashes replaced by spaces, as shown in quiz
// prompts ("noble gas").
func (g GroupBlock) Label() string {
	return strings.ReplaceAll(string(g), "-", " ")
}

// Element is one entry of the periodic table.
type Element struct {
	Number                int        `yaml:"number"                json:"atomicNumber"`
	Symbol                string     `yaml:"symbol"                json:"symbol"`
	Name                  string     `yaml:"name"                  json:"name"`
	NameEn                string     `yaml:"name_en"               json:"nameEn"`
	AtomicMass            float64    `yaml:"atomic_mass"           json:"atomicMass"`
	ElectronConfiguration string     `yaml:"electron_configuration" json:"electronConfiguration"`
	GeneralConfiguration  string     `yaml:"general_configuration" json:"generalConfiguration"`
	OrbitalType           string     `yaml:"orbital_type"          json:"orbitalType"`
	Electrons             []int      `yaml:"electrons"             json:"electrons"`
	GroupBlock            GroupBlock `yaml:"group_block"           json:"groupBlock"`
	GroupBlockName        string     `yaml:"group_block_name"      json:"groupBlockName"`
	Valence               int        `yaml:"valence"               json:"valence"`
	Row                   int        `yaml:"row"                   json:"row"`
	Col                   int        `yaml:"col"                   json:"col"`
	Description           string     `yaml:"description"           json:"description"`
	FunFact               string     `yaml:"fun_fact,omitempty"    json:"funFact,omitempty"`
}

// clone returns a deep copy so callers cannot mutate the dataset.
func (e Element) clone() Element {
	e.Electrons = slices.Clone(e.Electrons)
	return e
}

//go:embed elements.yaml
var embedded []byte

// Dataset is the immutable, ordered element collection.
type Dataset struct {
	elements []Element
	byNumber map[int]int
	bySymbol map[string]int
}

type file struct {
	Elements []Element `yaml:"elements"`
}

// Embedded loads the dataset compiled into the binary.
func Embedded() (*Dataset, error) {
	return Load(bytes.NewReader(embedded))
}

// LoadFile loads a dataset from a YAML file on disk.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("element: open %q: %w", path, err)
	}
	defer f.Close()
	ds, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("element: load %q: %w", path, err)
	}
	return ds, nil
}

// Load decodes a YAML dataset from r and validates it.
func Load(r io.Reader) (*Dataset, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("element: decode yaml: %w", err)
	}
	return New(f.Elements)
}

// New builds a dataset from elements after validating them. The slice is
// copied.
func New(elements []Element) (*Dataset, error) {
	if err := Validate(elements); err != nil {
		return nil, err
	}
	ds := &Dataset{
		elements: make([]Element, len(elements)),
		byNumber: make(map[int]int, len(elements)),
		bySymbol: make(map[string]int, len(elements)),
	}
	for i, e := range elements {
		ds.elements[i] = e.clone()
		ds.byNumber[e.Number] = i
		ds.bySymbol[e.Symbol] = i
	}
	return ds, nil
}

// Validate checks element records for the invariants every consumer relies
// on. It returns all problems found, joined.
func Validate(elements []Element) error {
	if len(elements) == 0 {
		return errors.New("element: dataset is empty")
	}
	var errs []error
	numbers := make(map[int]int, len(elements))
	symbols := make(map[string]int, len(elements))
	names := make(map[string]int, len(elements))

	for i, e := range elements {
		prefix := fmt.Sprintf("elements[%d]", i)
		if e.Number <= 0 {
			errs = append(errs, fmt.Errorf("%s.number %d must be positive", prefix, e.Number))
		} else if prev, ok := numbers[e.Number]; ok {
			errs = append(errs, fmt.Errorf("%s.number %d duplicates elements[%d]", prefix, e.Number, prev))
		} else {
			numbers[e.Number] = i
		}

		if e.Symbol == "" {
			errs = append(errs, fmt.Errorf("%s.symbol is required", prefix))
		} else if prev, ok := symbols[e.Symbol]; ok {
			errs = append(errs, fmt.Errorf("%s.symbol %q duplicates elements[%d]", prefix, e.Symbol, prev))
		} else {
			symbols[e.Symbol] = i
		}

		// Names double as answer options, so they must be unique.
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if prev, ok := names[e.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q duplicates elements[%d]", prefix, e.Name, prev))
		} else {
			names[e.Name] = i
		}

		if !e.GroupBlock.IsValid() {
			errs = append(errs, fmt.Errorf("%s.group_block %q is not recognised", prefix, e.GroupBlock))
		}
		switch e.OrbitalType {
		case "s", "p", "d":
		default:
			errs = append(errs, fmt.Errorf("%s.orbital_type %q must be s, p or d", prefix, e.OrbitalType))
		}

		sum := 0
		for _, n := range e.Electrons {
			if n <= 0 {
				errs = append(errs, fmt.Errorf("%s.electrons contains empty shell", prefix))
			}
			sum += n
		}
		if sum != e.Number {
			errs = append(errs, fmt.Errorf("%s.electrons sum to %d, want %d", prefix, sum, e.Number))
		}
		if e.Row <= 0 || e.Col <= 0 || e.Col > 18 {
			errs = append(errs, fmt.Errorf("%s position (%d,%d) is outside the table", prefix, e.Row, e.Col))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of elements.
func (d *Dataset) Len() int { return len(d.elements) }

// All returns a copy of every element in table order.
func (d *Dataset) All() []Element {
	out := make([]Element, len(d.elements))
	for i, e := range d.elements {
		out[i] = e.clone()
	}
	return out
}

// At returns the i-th element in table order. It panics if i is out of range.
func (d *Dataset) At(i int) Element { return d.elements[i].clone() }

// ByNumber looks an element up by atomic number.
func (d *Dataset) ByNumber(n int) (Element, bool) {
	i, ok := d.byNumber[n]
	if !ok {
		return Element{}, false
	}
	return d.elements[i].clone(), true
}

// BySymbol looks an element up by its chemical symbol (case-sensitive).
func (d *Dataset) BySymbol(s string) (Element, bool) {
	i, ok := d.bySymbol[s]
	if !ok {
		return Element{}, false
	}
	return d.elements[i].clone(), true
}
