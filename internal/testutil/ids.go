package testutil

// FixedIDGenerator returns the same run identifier every time.
//
// Benchmark reports embed a run ID; a fixed one makes rendered reports
// byte-identical across test runs so they can be compared with golden
// files.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id. If id is empty, Generate
// returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed identifier.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
