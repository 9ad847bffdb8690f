package importing

// Result is the outcome of one import run. It is returned to the caller and
// never persisted; success is implicit in Errors being empty.
type Result struct {
	Summary  Summary      `json:"summary"`
	DB       DBOperations `json:"dbOperations"`
	Errors   []GroupError `json:"errors"`
	Warnings []string     `json:"warnings"`
}

type Summary struct {
	RowsProcessed int       `json:"rowsProcessed"`
	UniqueGroups  int       `json:"uniqueGroupsFound"`
	Breakdown     Breakdown `json:"breakdown"`
}

type Breakdown struct {
	Normal     int `json:"normal"`
	Additional int `json:"additional"`
}

type DBOperations struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// GroupError captures one failed group: its key, the failure reason and a
// sample of the raw rows for operator diagnostics.
type GroupError struct {
	Key        string   `json:"key"`
	Reason     string   `json:"reason"`
	SampleRows []string `json:"sampleRows"`
}

func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}
