package io

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strconv"

	"cbfusion/pkg/model"
	"cbfusion/pkg/model/corpus"
)

// DataRecord is one labelled sample joined from the feature and text files.
type DataRecord struct {
	ID     string
	Sample model.Sample
	Target float64
}

type DataBatch []*DataRecord

// Samples returns the model inputs of the batch, in order.
func (b DataBatch) Samples() []model.Sample {
	samples := make([]model.Sample, len(b))
	for i, r := range b {
		samples[i] = r.Sample
	}
	return samples
}

type DataParameters struct {
	DataFile     string
	TextFile     string
	IDColumn     string
	TargetColumn string
	// Institutions is the number of corpora kept per sample: 2 for ECB and FED,
	// 1 for ECB only, 0 to ignore the text file.
	Institutions int
	// WithoutNontext drops the nontextual features from every sample.
	WithoutNontext bool
}

type DataError struct {
	Line  int
	Error string
}

// LoadData reads the feature file and joins every row with its texts. Rows that
// cannot be parsed are reported as DataErrors and skipped. A nil metaData is
// built from the file header.
func LoadData(p DataParameters, metaData *model.Metadata) (*model.Metadata, []*DataRecord, []DataError, error) {
	texts := map[string][]corpus.Corpus{}
	var errors []DataError
	if p.TextFile != "" && p.Institutions > 0 {
		var err error
		texts, errors, err = LoadTexts(p.TextFile)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	inputFile, err := os.Open(p.DataFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error opening file: %w", err)
	}
	defer inputFile.Close()

	reader := csv.NewReader(inputFile)
	reader.Comma = ','
	reader.FieldsPerRecord = -1

	//First line is expected to be a header
	record, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error reading data header: %w", err)
	}
	if metaData == nil {
		metaData = model.NewMetadata()
	}
	if err := metaData.BindHeader(record, p.IDColumn, p.TargetColumn); err != nil {
		return nil, nil, nil, err
	}

	var result []*DataRecord
	currentLine := 1
	for record, err = reader.Read(); err == nil; record, err = reader.Read() {
		currentLine++
		r, err := parseRecord(p, metaData, texts, record)
		if err != nil {
			errors = append(errors, DataError{
				Line:  currentLine,
				Error: err.Error(),
			})
			continue
		}
		result = append(result, r)
	}
	if err != io.EOF {
		return nil, nil, nil, fmt.Errorf("error reading data at line %d: %w", currentLine+1, err)
	}
	return metaData, result, errors, nil
}

func parseRecord(p DataParameters, metaData *model.Metadata, texts map[string][]corpus.Corpus, record []string) (*DataRecord, error) {
	if len(record) != len(metaData.Columns) {
		return nil, fmt.Errorf("row has %d fields, header has %d", len(record), len(metaData.Columns))
	}
	r := &DataRecord{ID: record[metaData.IDColumn]}
	if metaData.TargetColumn >= 0 {
		target, err := model.ParseTarget(record[metaData.TargetColumn])
		if err != nil {
			return nil, err
		}
		r.Target = target
	}
	if !p.WithoutNontext {
		features, err := parseFeatures(metaData, record)
		if err != nil {
			return nil, err
		}
		r.Sample.Nontext = features
	}
	if p.TextFile != "" && p.Institutions > 0 {
		corpora, ok := texts[r.ID]
		if !ok {
			return nil, fmt.Errorf("no text found for id %s", r.ID)
		}
		if len(corpora) < p.Institutions {
			return nil, fmt.Errorf("text for id %s has %d institutions, expected %d", r.ID, len(corpora), p.Institutions)
		}
		r.Sample.Text = corpora[:p.Institutions]
	}
	return r, nil
}

func parseFeatures(metaData *model.Metadata, record []string) ([]float64, error) {
	features := make([]float64, metaData.FeatureCount())
	for column, index := range metaData.FeaturesMap.ColumnToIndex {
		value, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing feature %s: %w", metaData.Columns[column], err)
		}
		features[index] = value
	}
	return features, nil
}

func SaveModel(model *model.Model, writer io.Writer) error {
	encoder := gob.NewEncoder(writer)
	err := encoder.Encode(model)
	if err != nil {
		return fmt.Errorf("error encoding model: %w", err)
	}
	return nil
}

func LoadModel(input io.Reader) (*model.Model, error) {
	decoder := gob.NewDecoder(input)
	model := model.Model{}
	err := decoder.Decode(&model)
	if err != nil {
		return nil, fmt.Errorf("error decoding model: %w", err)
	}
	return &model, nil
}
