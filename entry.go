package fetchcache

import "github.com/unkn0wn-root/fetchcache/fetcher"

// Meta describes the response a Success entry was built from.
type Meta = fetcher.Meta

// Status of a cache slot. A key without an entry is StatusIdle.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// state is the per-status payload of an entry. Exactly one variant is held,
// so value, error and pending can never coexist.
type state interface {
	status() Status
}

type loadingState struct{ pending *Pending }

type successState struct {
	value any
	meta  Meta
}

type errorState struct{ err error }

func (loadingState) status() Status { return StatusLoading }
func (successState) status() Status { return StatusSuccess }
func (errorState) status() Status   { return StatusError }

// entry is one cache slot. Only the Store touches it.
type entry struct {
	state state
	uses  int
	keep  bool
	stale bool // only with successState and keep
}

func (e *entry) status() Status { return e.state.status() }

// terminal reports whether the entry has settled.
func (e *entry) terminal() bool {
	s := e.status()
	return s == StatusSuccess || s == StatusError
}

// Snapshot is a read-only copy of an entry.
type Snapshot struct {
	Key     string
	Status  Status
	Value   any      // StatusSuccess
	Meta    Meta     // StatusSuccess
	Err     error    // StatusError
	Pending *Pending // StatusLoading
	Uses    int
	Keep    bool
	Stale   bool
	// Generation counts fetches started for the key.
	Generation uint64
}

func (e *entry) snapshot(key string, gen uint64) Snapshot {
	s := Snapshot{
		Key:        key,
		Status:     e.status(),
		Uses:       e.uses,
		Keep:       e.keep,
		Stale:      e.stale,
		Generation: gen,
	}
	switch st := e.state.(type) {
	case loadingState:
		s.Pending = st.pending
	case successState:
		s.Value, s.Meta = st.value, st.meta
	case errorState:
		s.Err = st.err
	}
	return s
}
