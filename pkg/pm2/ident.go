package pm2

import (
	"strconv"

	"github.com/gopm2/gopm2/pkg/types"
)

// Ident identifies a process by name, OS pid, PM2 id, or any combination.
// The zero value carries no identifier; operations that require a target
// reject it with a ValidationError. PMID is a pointer because 0 is a valid
// PM2 id.
type Ident struct {
	Name string
	PID  int
	PMID *int
}

// ByName identifies a process by its unique name.
func ByName(name string) Ident { return Ident{Name: name} }

// ByPID identifies a process by its OS pid. Only meaningful while the
// process is running.
func ByPID(pid int) Ident { return Ident{PID: pid} }

// ByPMID identifies a process by its daemon-assigned id, the stable handle
// used for mutating operations.
func ByPMID(id int) Ident { return Ident{PMID: &id} }

// IsZero reports whether no identifier was provided.
func (id Ident) IsZero() bool {
	return id.Name == "" && id.PID == 0 && id.PMID == nil
}

// matches reports whether the snapshot matches any provided identifier.
// Matching is or, not and: with several identifiers given, one agreeing
// field suffices even when the others disagree.
func (id Ident) matches(p *types.Process) bool {
	if id.Name != "" && p.Name == id.Name {
		return true
	}
	if id.PID != 0 && p.PID == id.PID {
		return true
	}
	if id.PMID != nil && p.PMID == *id.PMID {
		return true
	}
	return false
}

// kind returns the identifier value and kind used for error reporting,
// preferring name over pid over pm_id when several were given.
func (id Ident) kind() (string, IdentKind) {
	switch {
	case id.Name != "":
		return id.Name, KindName
	case id.PID != 0:
		return strconv.Itoa(id.PID), KindPID
	default:
		return strconv.Itoa(*id.PMID), KindPMID
	}
}

// resolve scans the snapshot list in order and returns the first match.
func (id Ident) resolve(procs []types.Process) (*types.Process, error) {
	if id.IsZero() {
		return nil, validationError("at least one identifier (name, pid, pm_id) must be provided")
	}
	for i := range procs {
		if id.matches(&procs[i]) {
			return &procs[i], nil
		}
	}
	value, kind := id.kind()
	return nil, notFoundError(value, kind)
}
