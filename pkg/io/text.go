package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"cbfusion/pkg/model/corpus"
	"cbfusion/pkg/model/document"
)

const maxTextLineSize = 64 << 20

type jsonCorpus struct {
	Tokens [][]int `json:"tokens"`
	Masks  [][]int `json:"masks"`
}

type jsonText struct {
	ID  string      `json:"id"`
	ECB *jsonCorpus `json:"ecb"`
	FED *jsonCorpus `json:"fed"`
}

// LoadTexts reads a JSON lines file of pre-tokenized corpora, keyed by sample
// id. Each value holds the ECB corpus, followed by the FED corpus when present.
func LoadTexts(fileName string) (map[string][]corpus.Corpus, []DataError, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening text file: %w", err)
	}
	defer f.Close()

	texts := map[string][]corpus.Corpus{}
	var errors []DataError
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), maxTextLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		id, corpora, err := parseText(scanner.Bytes())
		if err != nil {
			errors = append(errors, DataError{Line: line, Error: err.Error()})
			continue
		}
		texts[id] = corpora
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading text file at line %d: %w", line+1, err)
	}
	return texts, errors, nil
}

func parseText(data []byte) (string, []corpus.Corpus, error) {
	var t jsonText
	if err := json.Unmarshal(data, &t); err != nil {
		return "", nil, fmt.Errorf("error decoding text: %w", err)
	}
	if t.ID == "" {
		return "", nil, fmt.Errorf("text without id")
	}
	if t.ECB == nil {
		return "", nil, fmt.Errorf("text %s has no ECB corpus", t.ID)
	}
	ecb, err := t.ECB.corpus()
	if err != nil {
		return "", nil, fmt.Errorf("ECB corpus of %s: %w", t.ID, err)
	}
	corpora := []corpus.Corpus{ecb}
	if t.FED != nil {
		fed, err := t.FED.corpus()
		if err != nil {
			return "", nil, fmt.Errorf("FED corpus of %s: %w", t.ID, err)
		}
		corpora = append(corpora, fed)
	}
	return t.ID, corpora, nil
}

func (c *jsonCorpus) corpus() (corpus.Corpus, error) {
	if len(c.Tokens) != len(c.Masks) {
		return nil, fmt.Errorf("%d token sequences but %d masks", len(c.Tokens), len(c.Masks))
	}
	result := make(corpus.Corpus, len(c.Tokens))
	for i, tokens := range c.Tokens {
		if len(tokens) != len(c.Masks[i]) {
			return nil, fmt.Errorf("document %d has %d tokens but %d mask values", i, len(tokens), len(c.Masks[i]))
		}
		mask := make([]bool, len(tokens))
		for j, v := range c.Masks[i] {
			mask[j] = v != 0
		}
		result[i] = document.Document{TokenIDs: tokens, Mask: mask}
	}
	return result, nil
}
