package facets

import (
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// NewDiamondLoupe returns the introspection facet.
func NewDiamondLoupe() *Table {
	return NewTable("DiamondLoupeFacet").
		Handle("facets()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return encode(env.Loupe().Facets())
		}).
		Handle("facetFunctionSelectors(address)", func(env *diamond.Env, input []byte) ([]byte, error) {
			facet, err := decodeAddress(input)
			if err != nil {
				return nil, err
			}
			return encode(env.Loupe().FacetFunctionSelectors(facet))
		}).
		Handle("facetAddresses()", func(env *diamond.Env, _ []byte) ([]byte, error) {
			return encode(env.Loupe().FacetAddresses())
		}).
		Handle("facetAddress(bytes4)", func(env *diamond.Env, input []byte) ([]byte, error) {
			var sel selector.Selector
			if err := decode(input, &sel); err != nil {
				return nil, err
			}
			return encode(env.Loupe().FacetAddress(sel))
		})
}
