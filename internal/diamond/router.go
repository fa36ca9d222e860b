package diamond

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// route dispatches sel to its facet within env. Facet output and errors
// are returned as-is; a facet panic becomes a FacetPanicked error.
func (d *Diamond) route(env *Env, sel selector.Selector, input []byte) (out []byte, err error) {
	if env.Depth >= d.maxDepth {
		return nil, &Error{Kind: KindCallDepthExceeded, Selector: sel}
	}
	entry, ok := openRegistry(env.State).lookup(sel)
	if !ok {
		return nil, &Error{Kind: KindFunctionNotFound, Selector: sel}
	}
	f, ok := d.code.Resolve(entry.Facet)
	if !ok {
		return nil, &Error{Kind: KindInvalidModule, Selector: sel, Facet: entry.Facet}
	}

	d.log.WithFields(logrus.Fields{
		"selector": sel.String(),
		"facet":    FormatAddress(entry.Facet),
		"depth":    env.Depth,
	}).Debug("routing call")

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &Error{Kind: KindFacetPanicked, Selector: sel, Facet: entry.Facet, Err: fmt.Errorf("%v", r)}
		}
	}()
	return f.Invoke(env, sel, input)
}
