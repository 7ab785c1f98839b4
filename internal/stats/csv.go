package stats

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"tetrevo/internal/model"
)

const (
	generationCSVFile    = "generation_diagnostics.csv"
	fitnessSeriesCSVFile = "fitness_series.csv"
)

type generationRow struct {
	Generation     int     `csv:"generation"`
	BestFitness    float64 `csv:"best_fitness"`
	MeanFitness    float64 `csv:"mean_fitness"`
	MinFitness     float64 `csv:"min_fitness"`
	FitnessStdDev  float64 `csv:"fitness_stddev"`
	UniqueGenomes  int     `csv:"unique_genomes"`
	CloneFallbacks int     `csv:"clone_fallbacks"`
	SkippedInvalid int     `csv:"skipped_invalid"`
}

type fitnessRow struct {
	Generation  int     `csv:"generation"`
	BestFitness float64 `csv:"best_fitness"`
}

func WriteGenerationCSV(runDir string, diagnostics []model.GenerationDiagnostics) error {
	rows := make([]generationRow, 0, len(diagnostics))
	for _, d := range diagnostics {
		rows = append(rows, generationRow{
			Generation:     d.Generation,
			BestFitness:    d.BestFitness,
			MeanFitness:    d.MeanFitness,
			MinFitness:     d.MinFitness,
			FitnessStdDev:  d.FitnessStdDev,
			UniqueGenomes:  d.UniqueGenomes,
			CloneFallbacks: d.CloneFallbacks,
			SkippedInvalid: d.SkippedInvalid,
		})
	}
	return writeCSV(filepath.Join(runDir, generationCSVFile), &rows)
}

func WriteFitnessSeriesCSV(runDir string, bestByGeneration []float64) error {
	rows := make([]fitnessRow, 0, len(bestByGeneration))
	for i, best := range bestByGeneration {
		rows = append(rows, fitnessRow{Generation: i, BestFitness: best})
	}
	return writeCSV(filepath.Join(runDir, fitnessSeriesCSVFile), &rows)
}

func ReadFitnessSeriesCSV(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, fitnessSeriesCSVFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	var rows []fitnessRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, false, err
	}
	series := make([]float64, 0, len(rows))
	for _, row := range rows {
		series = append(series, row.BestFitness)
	}
	return series, true, nil
}

func writeCSV(path string, rows any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return gocsv.MarshalFile(rows, file)
}
