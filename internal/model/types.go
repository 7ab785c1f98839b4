package model

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NewVersionedRecord stamps the current schema and codec versions.
func NewVersionedRecord() VersionedRecord {
	return VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

// Weights is the 4-parameter evaluation genome. Signs are unconstrained:
// height, holes and bumpiness are fed to the evaluator negated, so a
// negative weight produces a net penalty and a positive weight a reward.
type Weights struct {
	Height    float64 `json:"height"`
	Lines     float64 `json:"lines"`
	Holes     float64 `json:"holes"`
	Bumpiness float64 `json:"bumpiness"`
}

// FitnessRecord accumulates game results for a genome. BestScore is
// monotonically non-decreasing.
type FitnessRecord struct {
	BestScore   float64 `json:"best_score"`
	GamesPlayed int     `json:"games_played"`
	MeanScore   float64 `json:"mean_score"`
}

type Genome struct {
	VersionedRecord
	ID         string        `json:"id"`
	Weights    Weights       `json:"weights"`
	ParentIDs  []string      `json:"parent_ids,omitempty"`
	Generation int           `json:"generation"`
	Fitness    FitnessRecord `json:"fitness"`
}

type Population struct {
	VersionedRecord
	ID         string   `json:"id"`
	GenomeIDs  []string `json:"genome_ids"`
	Generation int      `json:"generation"`
}

// ArenaSummary tracks the best score ever observed in a named arena.
type ArenaSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestScore   float64 `json:"best_score"`
}

type LineageRecord struct {
	VersionedRecord
	GenomeID   string   `json:"genome_id"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	Generation int      `json:"generation"`
	Operation  string   `json:"operation"`
	Weights    Weights  `json:"weights"`
}

type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	BestFitness    float64 `json:"best_fitness"`
	MeanFitness    float64 `json:"mean_fitness"`
	MinFitness     float64 `json:"min_fitness"`
	FitnessStdDev  float64 `json:"fitness_std_dev"`
	UniqueGenomes  int     `json:"unique_genomes"`
	CloneFallbacks int     `json:"clone_fallbacks"`
	SkippedInvalid int     `json:"skipped_invalid"`
}

type TopGenomeRecord struct {
	Rank    int     `json:"rank"`
	Fitness float64 `json:"fitness"`
	Genome  Genome  `json:"genome"`
}
