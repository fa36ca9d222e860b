package script

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

// DeploymentsNamespace is the block recording script facets deployed at
// runtime. It lives in diamond state, so it is journaled with the registry
// that routes to those facets.
const DeploymentsNamespace = "compose.script.deployments"

var countField = []byte("count")

// Record is a persisted script deployment.
type Record struct {
	Address   util.Uint160 `json:"address"`
	Deployer  util.Uint160 `json:"deployer"`
	Name      string       `json:"name"`
	Namespace string       `json:"namespace,omitempty"`
	Source    string       `json:"source"`
	Functions []Function   `json:"functions"`
}

func recordField(i uint32) []byte {
	return state.Field("rec", binary.BigEndian.AppendUint32(nil, i))
}

// Save appends rec to the deployment records in st.
func Save(st state.Store, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("script: encode record %s: %w", rec.Name, err)
	}
	block := state.Open(st, DeploymentsNamespace)
	n := block.Uint32(countField)
	block.Put(recordField(n), data)
	block.PutUint32(countField, n+1)
	return nil
}

// Records returns the deployment records in st in deployment order.
func Records(st state.Store) ([]Record, error) {
	block := state.Open(st, DeploymentsNamespace)
	n := block.Uint32(countField)
	out := make([]Record, 0, n)
	for i := uint32(0); i < n; i++ {
		data, ok := block.Get(recordField(i))
		if !ok {
			return nil, fmt.Errorf("script: deployment record %d missing", i)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("script: decode deployment record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Deploy compiles a script facet, deploys it from deployer and records the
// deployment in d's state. A failed commit undeploys the facet again.
func Deploy(ctx context.Context, d *diamond.Diamond, deployer util.Uint160, name, namespace, source string, fns []Function) (Record, *Facet, error) {
	f, err := New(name, namespace, source, fns)
	if err != nil {
		return Record{}, nil, err
	}
	rec := Record{
		Deployer:  deployer,
		Name:      name,
		Namespace: namespace,
		Source:    source,
		Functions: fns,
	}

	err = d.Update(ctx, deployer, func(env *diamond.Env) error {
		addr, err := d.Code().Deploy(deployer, f)
		if err != nil {
			return err
		}
		rec.Address = addr
		env.Emit(events.NewEvent(events.EventFacetDeployed).
			Facet(diamond.FormatAddress(addr)).
			Message(name).
			Build())
		return Save(env.State, rec)
	})
	if err != nil {
		if !rec.Address.Equals(util.Uint160{}) {
			d.Code().Undeploy(rec.Address)
		}
		return Record{}, nil, err
	}
	return rec, f, nil
}

// Restore redeploys every recorded script facet at its recorded address.
func Restore(code *diamond.CodeStore, st state.Store) (int, error) {
	recs, err := Records(st)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		f, err := New(rec.Name, rec.Namespace, rec.Source, rec.Functions)
		if err != nil {
			return 0, err
		}
		if err := code.DeployAt(rec.Address, f); err != nil {
			return 0, fmt.Errorf("script: restore %s: %w", rec.Name, err)
		}
	}
	return len(recs), nil
}
