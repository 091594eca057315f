package narration

import (
	"fmt"

	"github.com/MrWong99/periodix/pkg/element"
)

// DescriptionPrompt is the text narrated when an element's detail view opens.
func DescriptionPrompt(e element.Element) string {
	return fmt.Sprintf("أهلاً بك في عالم الكيمياء. سأقدم لك الآن شرحاً صوتياً شيقاً عن عنصر %s. %s", e.Name, e.Description)
}

// ConfigurationPrompt is the text narrated for an element's electron
// configuration.
func ConfigurationPrompt(e element.Element) string {
	return fmt.Sprintf("والآن، لنستمع إلى شرح مبسط للتوزيع الإلكتروني لعنصر %s، وهو %s.", e.Name, e.ElectronConfiguration)
}
