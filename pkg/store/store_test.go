package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_PutList(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Put(
		Prediction{ID: "b", Run: "run-1", Probability: 0.8, Logit: 1.38, Target: 1, Timestamp: now},
		Prediction{ID: "a", Run: "run-1", Probability: 0.1, Logit: -2.2, Target: 0, Timestamp: now},
		Prediction{ID: "a", Run: "run-2", Probability: 0.4, Timestamp: now},
	))

	run1, err := s.List("run-1")
	require.NoError(t, err)
	require.Len(t, run1, 2)
	require.Equal(t, "a", run1[0].ID)
	require.Equal(t, "b", run1[1].ID)
	require.Equal(t, 0.8, run1[1].Probability)
	require.True(t, now.Equal(run1[1].Timestamp))

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Equal(t, []string{"run-1", "run-2"}, runs)

	require.NoError(t, s.Put(Prediction{ID: "a", Run: "run-2", Probability: 0.6}))
	run2, err := s.List("run-2")
	require.NoError(t, err)
	require.Len(t, run2, 1)
	require.Equal(t, 0.6, run2[0].Probability)

	missing, err := s.List("run-3")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(Prediction{ID: "a", Run: "r"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	predictions, err := s.List("r")
	require.NoError(t, err)
	require.Len(t, predictions, 1)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "predictions.db"))
	require.Error(t, err)
}
