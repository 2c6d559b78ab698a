// Package store keeps scored samples in a BoltDB file so that predictions of
// several evaluation runs can be compared later.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

type Prediction struct {
	ID          string    `json:"id"`
	Run         string    `json:"run"`
	Model       string    `json:"model"`
	Probability float64   `json:"probability"`
	Logit       float64   `json:"logit"`
	Target      float64   `json:"target"`
	Timestamp   time.Time `json:"timestamp"`
}

func (p Prediction) key() []byte {
	return []byte(p.Run + "/" + p.ID)
}

type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Put stores the predictions in one transaction, replacing earlier predictions
// of the same run and sample.
func (s *Store) Put(predictions ...Prediction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		for _, p := range predictions {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal prediction %s: %w", p.ID, err)
			}
			if err := b.Put(p.key(), data); err != nil {
				return fmt.Errorf("store prediction %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// List returns the predictions of a run ordered by sample id. An empty run
// lists every prediction.
func (s *Store) List(run string) ([]Prediction, error) {
	var predictions []Prediction
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		var prefix []byte
		if run != "" {
			prefix = []byte(run + "/")
		}
		k, v := c.First()
		if len(prefix) > 0 {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var p Prediction
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal prediction %s: %w", k, err)
			}
			predictions = append(predictions, p)
		}
		return nil
	})
	return predictions, err
}

// Runs returns the distinct run names in the store, in key order.
func (s *Store) Runs() ([]string, error) {
	var runs []string
	predictions, err := s.List("")
	if err != nil {
		return nil, err
	}
	for _, p := range predictions {
		if len(runs) == 0 || runs[len(runs)-1] != p.Run {
			runs = append(runs, p.Run)
		}
	}
	return runs, nil
}
