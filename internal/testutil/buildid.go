package testutil

// FixedBuildIDGenerator generates the same build id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// log records and reports of every build carry the same id.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// always returns the same id, so it never runs out.
//
// Thread-safety: FixedBuildIDGenerator is stateless and safe for concurrent use.
type FixedBuildIDGenerator struct {
	id string
}

// NewFixedBuildIDGenerator creates a new fixed build id generator.
//
// If id is empty, Generate() returns "test-build-default".
func NewFixedBuildIDGenerator(id string) *FixedBuildIDGenerator {
	if id == "" {
		id = "test-build-default"
	}
	return &FixedBuildIDGenerator{id: id}
}

// Generate returns the fixed build id.
//
// Implements engine.BuildIDGenerator interface.
func (g *FixedBuildIDGenerator) Generate() string {
	return g.id
}
