// Human-readable diagnostic dump of one object's computed state, used
// by operators debugging a specific retention chain without reaching
// for a debugger attached to the mapped files directly.
//
// Grounded on the teacher's goccy/go-json usage for record encoding
// (record.go), carried here for a read-only reporting struct instead of
// the on-disk record format.
package reachability

import (
	json "github.com/goccy/go-json"
)

// ObjectDiag is a snapshot of one object's analysis-time state, safe to
// marshal to JSON for logging or operator inspection.
type ObjectDiag struct {
	Index          ObjectIndex `json:"index"`
	ID             ObjectId    `json:"id"`
	ClassID        ClassId     `json:"classId"`
	HasGCRoot      bool        `json:"hasGcRoot"`
	HasRefList     bool        `json:"hasRefList"`
	IsTree         bool        `json:"isTree"`
	IsDeep         bool        `json:"isDeep"`
	Dominator      ObjectIndex `json:"dominator"`
	RetainedBytes  uint64      `json:"retainedBytes"`
	IncomingDegree int         `json:"incomingDegree"`
}

// Diagnose captures ObjectDiag for index. refs resolves its class;
// parents counts its recorded incoming references (bounded work, so
// safe to call per-query rather than only during bulk analysis).
func Diagnose(table *ObjectTable, parents *ParentLookup, refs ReferenceEnumerator, index ObjectIndex, id ObjectId) ObjectDiag {
	degree := 0
	parents.Parents(index, func(ObjectIndex) bool { degree++; return true })

	return ObjectDiag{
		Index:          index,
		ID:             id,
		ClassID:        refs.ClassOf(index),
		HasGCRoot:      table.HasFlag(index, FlagHasGCRoot),
		HasRefList:     table.HasFlag(index, FlagHasRefList),
		IsTree:         table.HasFlag(index, FlagIsTree),
		IsDeep:         table.HasFlag(index, FlagIsDeep),
		Dominator:      ObjectIndex(table.RefPointer(index)),
		RetainedBytes:  table.RetainedSize(index),
		IncomingDegree: degree,
	}
}

// MarshalJSON-friendly encode/decode helpers, kept thin over
// goccy/go-json so callers never import encoding/json directly.

func encodeDiag(d ObjectDiag) ([]byte, error) { return json.Marshal(d) }

func decodeDiag(b []byte) (ObjectDiag, error) {
	var d ObjectDiag
	err := json.Unmarshal(b, &d)
	return d, err
}

// DiagnoseObject returns id's analysis-time diagnostic snapshot.
// Requires computeDominators to have run.
func (a *Analysis) DiagnoseObject(id ObjectId) (ObjectDiag, error) {
	if err := a.computeDominators(); err != nil {
		return ObjectDiag{}, err
	}
	if err := a.blockQuery(); err != nil {
		return ObjectDiag{}, err
	}
	defer a.mu.RUnlock()

	index, ok := a.table.IndexOf(id)
	if !ok {
		return ObjectDiag{}, ErrNotFound
	}
	return Diagnose(a.table, a.parents, a.source, index, id), nil
}

// DiagnoseObjectJSON is DiagnoseObject encoded for logging or an
// operator-facing endpoint.
func (a *Analysis) DiagnoseObjectJSON(id ObjectId) ([]byte, error) {
	d, err := a.DiagnoseObject(id)
	if err != nil {
		return nil, err
	}
	return encodeDiag(d)
}
