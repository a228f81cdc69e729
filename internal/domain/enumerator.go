package domain

// Enumerator supplies the ordered list of archive names to process.
// The orchestrator never computes this list itself.
type Enumerator interface {
	Targets() []string
}

// DefaultTargets is the built-in Divvy trip-data set. The 2220 entry does
// not exist on the server and exercises the not-found path end to end.
var DefaultTargets = []string{
	"Divvy_Trips_2018_Q4.zip",
	"Divvy_Trips_2019_Q1.zip",
	"Divvy_Trips_2019_Q2.zip",
	"Divvy_Trips_2019_Q3.zip",
	"Divvy_Trips_2019_Q4.zip",
	"Divvy_Trips_2020_Q1.zip",
	"Divvy_Trips_2220_Q1.zip",
}

// StaticEnumerator serves a fixed list of target names.
type StaticEnumerator struct {
	names []string
}

func NewStaticEnumerator(names []string) *StaticEnumerator {
	cp := make([]string, len(names))
	copy(cp, names)
	return &StaticEnumerator{names: cp}
}

func (e *StaticEnumerator) Targets() []string {
	cp := make([]string, len(e.names))
	copy(cp, e.names)
	return cp
}
