package quiz

import (
	"fmt"

	"github.com/MrWong99/periodix/pkg/element"
)

// Template identifies how a question asks about its element.
type Template string

// Question templates.
const (
	BySymbol                Template = "symbol"
	ByAtomicNumber          Template = "atomic-number"
	ByElectronConfiguration Template = "electron-configuration"
	ByGroupBlock            Template = "group-block"
)

func (m Mode) templates() []Template {
	if m == ModeGame {
		return []Template{BySymbol, ByAtomicNumber, ByElectronConfiguration}
	}
	return []Template{BySymbol, ByAtomicNumber, ByGroupBlock}
}

// prompt renders the question text. Quiz and game phrase the same template
// slightly differently.
func (t Template) prompt(mode Mode, e element.Element) string {
	if mode == ModeGame {
		switch t {
		case BySymbol:
			return fmt.Sprintf("أي عنصر له الرمز %s؟", e.Symbol)
		case ByAtomicNumber:
			return fmt.Sprintf("أي عنصر عدده الذري %d؟", e.Number)
		case ByElectronConfiguration:
			return fmt.Sprintf("أي عنصر توزيعه الإلكتروني %s؟", e.ElectronConfiguration)
		}
	}
	switch t {
	case BySymbol:
		return fmt.Sprintf("ما هو العنصر الذي يرمز له بـ %s؟", e.Symbol)
	case ByAtomicNumber:
		return fmt.Sprintf("ما هو العنصر الذي عدده الذري %d؟", e.Number)
	case ByGroupBlock:
		return fmt.Sprintf("أي عنصر ينتمي إلى مجموعة \"%s\"؟", e.GroupBlock.Label())
	case ByElectronConfiguration:
		return fmt.Sprintf("ما هو العنصر الذي توزيعه الإلكتروني %s؟", e.ElectronConfiguration)
	}
	return ""
}
