package narration

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/periodix/pkg/element"
)

// ErrNoElement is returned by the toggles before any element was opened.
var ErrNoElement = errors.New("narration: no element is open")

// Detail drives the two narration channels of the element detail view.
//
// Opening an element resets both channels and loads the description; it is
// not played until toggled. The configuration clip is fetched on its first
// toggle and replayed from the buffer afterwards. Toggling one channel
// pauses the other, so at most one clip is audible.
type Detail struct {
	desc *Channel
	conf *Channel

	mu      sync.Mutex
	current *element.Element
}

// NewDetail pairs a description channel with a configuration channel.
func NewDetail(description, configuration *Channel) *Detail {
	return &Detail{desc: description, conf: configuration}
}

// Description returns the description channel.
func (d *Detail) Description() *Channel { return d.desc }

// Configuration returns the configuration channel.
func (d *Detail) Configuration() *Channel { return d.conf }

// Element returns the open element.
func (d *Detail) Element() (element.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return element.Element{}, false
	}
	return *d.current, true
}

// Open switches the view to e and loads its description.
func (d *Detail) Open(ctx context.Context, e element.Element) error {
	d.mu.Lock()
	d.current = &e
	d.mu.Unlock()

	d.conf.Reset()
	return d.desc.Load(ctx, DescriptionPrompt(e))
}

// ToggleDescription plays or pauses the description clip. It reports
// whether the description is playing afterwards.
func (d *Detail) ToggleDescription() (bool, error) {
	if _, ok := d.Element(); !ok {
		return false, ErrNoElement
	}
	d.conf.Pause()
	return d.desc.Toggle(), nil
}

// ToggleConfiguration plays or pauses the configuration clip, fetching it
// first if nothing is buffered yet. A failed fetch leaves the channel empty
// so the next toggle tries again.
func (d *Detail) ToggleConfiguration(ctx context.Context) (bool, error) {
	e, ok := d.Element()
	if !ok {
		return false, ErrNoElement
	}
	d.desc.Pause()
	if d.conf.Ready() {
		return d.conf.Toggle(), nil
	}
	if err := d.conf.Load(ctx, ConfigurationPrompt(e)); err != nil {
		return false, err
	}
	return d.conf.player.Play(), nil
}

// Close stops both channels and forgets the element.
func (d *Detail) Close() {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	d.desc.Reset()
	d.conf.Reset()
}
