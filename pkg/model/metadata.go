package model

import (
	"fmt"
	"strings"
)

// NontextualColumns are the feature CSV columns forming the nontextual vector,
// in vector order: the lag series first, then the index-name indicators.
var NontextualColumns = []string{
	"Index - 9",
	"Index - 8",
	"Index - 7",
	"Index - 6",
	"Index - 5",
	"Index - 4",
	"Index - 3",
	"Index - 2",
	"Index - 1",
	"Index - 0",
	"Index Name_CVIX Index",
	"Index Name_EURUSD Curncy",
	"Index Name_EURUSDV1M Curncy",
	"Index Name_MOVE Index",
	"Index Name_SPX Index",
	"Index Name_SRVIX Index",
	"Index Name_SX5E Index",
	"Index Name_V2X Index",
	"Index Name_VIX Index",
}

// NameMap implements a bidirectional mapping between a name and an index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func (f NameMap) Size() int {
	return len(f.IndexToName)
}

func (f NameMap) ContainsName(name string) (int, bool) {
	index, ok := f.NameToIndex[name]
	return index, ok
}

func NewNameMap(names ...string) NameMap {
	m := NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
	for i, name := range names {
		m.Set(name, i)
	}
	return m
}

// ColumnMap is a bidirectional mapping between a column index and a feature vector index
type ColumnMap struct {
	ColumnToIndex map[int]int
	IndexToColumn map[int]int
}

func (f ColumnMap) Set(column int, index int) {
	f.ColumnToIndex[column] = index
	f.IndexToColumn[index] = column
}

func (f ColumnMap) Size() int {
	return len(f.ColumnToIndex)
}

func (f ColumnMap) GetColumn(column int) (int, bool) {
	index, ok := f.ColumnToIndex[column]
	return index, ok
}

func NewColumnMap() ColumnMap {
	return ColumnMap{
		ColumnToIndex: map[int]int{},
		IndexToColumn: map[int]int{},
	}
}

type Metadata struct {
	Columns []string

	// Features maps a nontextual feature name to its position in the feature vector
	Features NameMap

	// FeaturesMap maps a data row column index to a feature vector index
	FeaturesMap ColumnMap

	// IDColumn points to the column joining a data row with its texts
	IDColumn int

	// TargetColumn points to the column in the data row that contains the prediction target
	TargetColumn int
}

func NewMetadata(features ...string) *Metadata {
	if len(features) == 0 {
		features = NontextualColumns
	}
	return &Metadata{
		Features:     NewNameMap(features...),
		FeaturesMap:  NewColumnMap(),
		IDColumn:     -1,
		TargetColumn: -1,
	}
}

func (d *Metadata) FeatureCount() int {
	return d.Features.Size()
}

// BindHeader resolves the ID, target and feature columns of a CSV header.
func (d *Metadata) BindHeader(header []string, idColumn, targetColumn string) error {
	d.Columns = header
	d.IDColumn, d.TargetColumn = -1, -1
	d.FeaturesMap = NewColumnMap()
	for i, col := range header {
		col = strings.TrimSpace(col)
		switch {
		case col == idColumn:
			d.IDColumn = i
		case col == targetColumn:
			d.TargetColumn = i
		default:
			if index, ok := d.Features.ContainsName(col); ok {
				d.FeaturesMap.Set(i, index)
			}
		}
	}
	if d.IDColumn < 0 {
		return fmt.Errorf("id column %s not found in data header", idColumn)
	}
	if d.TargetColumn < 0 && targetColumn != "" {
		return fmt.Errorf("target column %s not found in data header", targetColumn)
	}
	if d.FeaturesMap.Size() != d.Features.Size() {
		for index := 0; index < d.Features.Size(); index++ {
			if _, ok := d.FeaturesMap.IndexToColumn[index]; !ok {
				return fmt.Errorf("feature column %s not found in data header", d.Features.IndexToName[index])
			}
		}
	}
	return nil
}

// ParseTarget reads a binary label.
func ParseTarget(value string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "1.0", "true":
		return 1, nil
	case "0", "0.0", "false":
		return 0, nil
	}
	return 0, fmt.Errorf("target value %q is not binary", value)
}
