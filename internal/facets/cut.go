package facets

import (
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// DiamondCutSignature is the signature of the cut function.
const DiamondCutSignature = "diamondCut((address,uint8,bytes4[])[],address,bytes)"

// CutRequest is the JSON payload of diamondCut. Addresses accept either Neo
// address or hex form.
type CutRequest struct {
	Cuts []CutItem `json:"cuts"`
	Init *InitItem `json:"init,omitempty"`
}

// CutItem is one cut in a CutRequest.
type CutItem struct {
	Facet     string              `json:"facet"`
	Action    diamond.Action      `json:"action"`
	Selectors []selector.Selector `json:"selectors"`
}

// InitItem is the initializer in a CutRequest.
type InitItem struct {
	Facet    string            `json:"facet"`
	Selector selector.Selector `json:"selector"`
	Input    []byte            `json:"input,omitempty"`
}

// Resolve converts the request into diamond cut values.
func (r CutRequest) Resolve() ([]diamond.Cut, *diamond.Init, error) {
	cuts := make([]diamond.Cut, 0, len(r.Cuts))
	for _, c := range r.Cuts {
		var facet util.Uint160
		if c.Facet != "" {
			addr, err := diamond.ParseAddress(c.Facet)
			if err != nil {
				return nil, nil, err
			}
			facet = addr
		}
		cuts = append(cuts, diamond.Cut{Facet: facet, Action: c.Action, Selectors: c.Selectors})
	}
	if r.Init == nil || r.Init.Facet == "" {
		return cuts, nil, nil
	}
	addr, err := diamond.ParseAddress(r.Init.Facet)
	if err != nil {
		return nil, nil, err
	}
	return cuts, &diamond.Init{Facet: addr, Selector: r.Init.Selector, Input: r.Init.Input}, nil
}

// NewDiamondCut returns the facet exposing diamondCut.
func NewDiamondCut() *Table {
	return NewTable("DiamondCutFacet").
		Handle(DiamondCutSignature, func(env *diamond.Env, input []byte) ([]byte, error) {
			var req CutRequest
			if err := decode(input, &req); err != nil {
				return nil, err
			}
			cuts, init, err := req.Resolve()
			if err != nil {
				return nil, diamond.Revertf("%v", err)
			}
			return nil, env.Cut(cuts, init)
		})
}
