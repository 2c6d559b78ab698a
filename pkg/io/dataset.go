package io

import (
	"math/rand"
)

// DataSet iterates over records in batches, either in file order or in a
// fresh random order each epoch.
type DataSet struct {
	Data         []*DataRecord
	BatchSize    int
	Rand         *rand.Rand
	dataIndices  []int
	currentOrder []int
	currentIndex int
}

type DatasetOrder int

const (
	OriginalOrder DatasetOrder = iota
	RandomOrder
)

func NewDataSet(data []*DataRecord, batchSize int, seed int64) *DataSet {
	dataIndices := make([]int, len(data))
	for i := range dataIndices {
		dataIndices[i] = i
	}
	return newDataSet(data, batchSize, dataIndices, rand.New(rand.NewSource(seed)))
}

func newDataSet(data []*DataRecord, batchSize int, indices []int, rnd *rand.Rand) *DataSet {
	if batchSize <= 0 {
		batchSize = 1
	}
	ds := &DataSet{Data: data, BatchSize: batchSize, Rand: rnd, dataIndices: indices}
	ds.ResetOrder(OriginalOrder)
	return ds
}

func (d *DataSet) ResetOrder(order DatasetOrder) {
	d.currentOrder = make([]int, len(d.dataIndices))
	switch order {
	case OriginalOrder:
		copy(d.currentOrder, d.dataIndices)
	case RandomOrder:
		for i, j := range d.Rand.Perm(len(d.dataIndices)) {
			d.currentOrder[i] = d.dataIndices[j]
		}
	}
	d.currentIndex = 0
}

// Next returns the following batch of the current order, empty once the order
// is exhausted.
func (d *DataSet) Next() DataBatch {
	batch := make(DataBatch, 0, d.BatchSize)
	for ; d.currentIndex < len(d.currentOrder) && len(batch) < d.BatchSize; d.currentIndex++ {
		batch = append(batch, d.Data[d.currentOrder[d.currentIndex]])
	}
	return batch
}

func (d *DataSet) Size() int {
	return len(d.dataIndices)
}

// Records returns the records of the set in file order.
func (d *DataSet) Records() []*DataRecord {
	records := make([]*DataRecord, len(d.dataIndices))
	for i, index := range d.dataIndices {
		records[i] = d.Data[index]
	}
	return records
}

// Split shuffles the set once and holds out the given fraction of records as a
// second set. Both halves share the data and the random generator.
func (d *DataSet) Split(holdout float64) (*DataSet, *DataSet) {
	indices := make([]int, len(d.dataIndices))
	copy(indices, d.dataIndices)
	d.Rand.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	held := int(holdout * float64(len(indices)))
	if holdout > 0 && held == 0 && len(indices) > 1 {
		held = 1
	}
	kept := len(indices) - held
	return newDataSet(d.Data, d.BatchSize, indices[:kept], d.Rand),
		newDataSet(d.Data, d.BatchSize, indices[kept:], d.Rand)
}
