package model

// Model is the unit persisted to disk: the trained classifier together with the
// metadata needed to read new data for it.
type Model struct {
	MetaData   *Metadata
	Classifier *Classifier
}
