package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"
)

// ArtifactVersion is the persisted schema version. Bump it when making a
// breaking change to any of the artifact documents.
const ArtifactVersion = 1

const (
	networkFile    = "network.json"
	vocabularyFile = "vocabulary.json"
	categoriesFile = "categories.json"
)

// Artifact is the complete output of one training run: the network together
// with the vocabulary and category index it was trained against. The three
// parts are always persisted and replaced together, never mixed across runs.
type Artifact struct {
	Network    *Network
	Vocabulary Vocabulary
	Categories CategoryIndex
	TrainedAt  time.Time
	Examples   int
}

// validate checks the cross-document invariants: the vector length the
// network was trained with must match the vocabulary, and the output width
// must match the category index.
func (a *Artifact) validate() error {
	if a.Network == nil || len(a.Vocabulary) == 0 || len(a.Categories) == 0 {
		return fmt.Errorf("%w: incomplete artifact", ErrCorruptArtifact)
	}
	if a.Network.Inputs() != len(a.Vocabulary)+1 {
		return fmt.Errorf("%w: network expects %d inputs, vocabulary implies %d",
			ErrCorruptArtifact, a.Network.Inputs(), len(a.Vocabulary)+1)
	}
	if a.Network.Outputs() != len(a.Categories) {
		return fmt.Errorf("%w: network has %d outputs, category index has %d entries",
			ErrCorruptArtifact, a.Network.Outputs(), len(a.Categories))
	}
	return nil
}

// Persisted document schemas. Every document carries the schema version so
// loading can refuse structurally incompatible artifacts before use.
type (
	networkDocument struct {
		Version   int         `json:"version"`
		TrainedAt time.Time   `json:"trained_at"`
		Examples  int         `json:"examples"`
		Inputs    int         `json:"inputs"`
		Hidden1   int         `json:"hidden1"`
		Hidden2   int         `json:"hidden2"`
		Outputs   int         `json:"outputs"`
		W1        [][]float64 `json:"w1"`
		B1        []float64   `json:"b1"`
		W2        [][]float64 `json:"w2"`
		B2        []float64   `json:"b2"`
		W3        [][]float64 `json:"w3"`
		B3        []float64   `json:"b3"`
	}

	vocabularyDocument struct {
		Version int            `json:"version"`
		Tokens  map[string]int `json:"tokens"`
	}

	categoriesDocument struct {
		Version    int            `json:"version"`
		Categories map[string]int `json:"categories"`
	}
)

// Store loads and saves per-user model artifacts under a base directory,
// caching each user's artifact in memory after first load. Loads for the
// same user are collapsed through singleflight; saves refresh the cache.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[int64]*Artifact
	group singleflight.Group
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[int64]*Artifact),
	}
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("user_%d", userID))
}

// Load returns the user's artifact, reading it from disk on first access.
// A user with no persisted artifact gets ErrModelNotFound; that is the
// normal cold-start state. A structurally invalid artifact gets
// ErrCorruptArtifact and is otherwise treated the same way by callers.
func (s *Store) Load(ctx context.Context, userID int64) (*Artifact, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		artifact, err := s.loadFromDisk(userID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[userID] = artifact
		s.mu.Unlock()
		return artifact, nil
	})
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Model artifact loaded",
		"user_id", userID,
		"vocabulary_size", len(v.(*Artifact).Vocabulary),
		"categories", len(v.(*Artifact).Categories))
	return v.(*Artifact), nil
}

// Has reports whether a usable artifact exists for the user, in cache or on
// disk.
func (s *Store) Has(userID int64) bool {
	s.mu.RLock()
	_, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return true
	}
	_, err := os.Stat(filepath.Join(s.userDir(userID), networkFile))
	return err == nil
}

// Save persists all three artifact documents for the user and refreshes the
// in-memory cache. Each document is written to a temp file and renamed into
// place so a concurrent reader never observes a partial write.
func (s *Store) Save(userID int64, artifact *Artifact) error {
	if err := artifact.validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}

	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	n := artifact.Network
	netDoc := networkDocument{
		Version:   ArtifactVersion,
		TrainedAt: artifact.TrainedAt,
		Examples:  artifact.Examples,
		Inputs:    n.inputs,
		Hidden1:   hidden1Units,
		Hidden2:   hidden2Units,
		Outputs:   n.outputs,
		W1:        matrixRows(n.l1.w),
		B1:        append([]float64(nil), rawVec(n.l1.b)...),
		W2:        matrixRows(n.l2.w),
		B2:        append([]float64(nil), rawVec(n.l2.b)...),
		W3:        matrixRows(n.l3.w),
		B3:        append([]float64(nil), rawVec(n.l3.b)...),
	}
	vocabDoc := vocabularyDocument{Version: ArtifactVersion, Tokens: artifact.Vocabulary}
	catDoc := categoriesDocument{Version: ArtifactVersion, Categories: artifact.Categories}

	// The vocabulary and category index are written before the network
	// document: the network file is what Has and Load key on, so it is
	// published last.
	if err := writeJSONAtomic(filepath.Join(dir, vocabularyFile), vocabDoc); err != nil {
		return fmt.Errorf("write vocabulary: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, categoriesFile), catDoc); err != nil {
		return fmt.Errorf("write categories: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, networkFile), netDoc); err != nil {
		return fmt.Errorf("write network: %w", err)
	}

	s.mu.Lock()
	s.cache[userID] = artifact
	s.mu.Unlock()

	slog.Info("Model artifact saved",
		"user_id", userID,
		"examples", artifact.Examples,
		"vocabulary_size", len(artifact.Vocabulary),
		"categories", len(artifact.Categories))
	return nil
}

// Invalidate drops the user's cached artifact so the next load re-reads
// durable storage.
func (s *Store) Invalidate(userID int64) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

func (s *Store) loadFromDisk(userID int64) (*Artifact, error) {
	dir := s.userDir(userID)

	var netDoc networkDocument
	if err := readJSON(filepath.Join(dir, networkFile), &netDoc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	var vocabDoc vocabularyDocument
	if err := readJSON(filepath.Join(dir, vocabularyFile), &vocabDoc); err != nil {
		return nil, fmt.Errorf("%w: vocabulary: %v", ErrCorruptArtifact, err)
	}
	var catDoc categoriesDocument
	if err := readJSON(filepath.Join(dir, categoriesFile), &catDoc); err != nil {
		return nil, fmt.Errorf("%w: categories: %v", ErrCorruptArtifact, err)
	}

	if netDoc.Version != ArtifactVersion || vocabDoc.Version != ArtifactVersion || catDoc.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: unsupported artifact version (network=%d vocabulary=%d categories=%d, want %d)",
			ErrCorruptArtifact, netDoc.Version, vocabDoc.Version, catDoc.Version, ArtifactVersion)
	}

	network, err := networkFromDocument(netDoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}

	artifact := &Artifact{
		Network:    network,
		Vocabulary: vocabDoc.Tokens,
		Categories: catDoc.Categories,
		TrainedAt:  netDoc.TrainedAt,
		Examples:   netDoc.Examples,
	}
	if err := artifact.validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

func networkFromDocument(doc networkDocument) (*Network, error) {
	if doc.Hidden1 != hidden1Units || doc.Hidden2 != hidden2Units {
		return nil, fmt.Errorf("unexpected hidden layer widths %d/%d", doc.Hidden1, doc.Hidden2)
	}
	l1, err := layerFromRows(doc.W1, doc.B1, hidden1Units, doc.Inputs)
	if err != nil {
		return nil, fmt.Errorf("layer 1: %w", err)
	}
	l2, err := layerFromRows(doc.W2, doc.B2, hidden2Units, hidden1Units)
	if err != nil {
		return nil, fmt.Errorf("layer 2: %w", err)
	}
	l3, err := layerFromRows(doc.W3, doc.B3, doc.Outputs, hidden2Units)
	if err != nil {
		return nil, fmt.Errorf("layer 3: %w", err)
	}
	return &Network{
		inputs:  doc.Inputs,
		outputs: doc.Outputs,
		l1:      l1,
		l2:      l2,
		l3:      l3,
	}, nil
}

func layerFromRows(rows [][]float64, bias []float64, out, in int) (*denseLayer, error) {
	if len(rows) != out || len(bias) != out {
		return nil, fmt.Errorf("got %d weight rows and %d biases, want %d", len(rows), len(bias), out)
	}
	data := make([]float64, 0, out*in)
	for i, row := range rows {
		if len(row) != in {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), in)
		}
		data = append(data, row...)
	}
	return &denseLayer{
		w:  mat.NewDense(out, in, data),
		b:  mat.NewVecDense(out, append([]float64(nil), bias...)),
		mw: mat.NewDense(out, in, nil),
		vw: mat.NewDense(out, in, nil),
		mb: mat.NewVecDense(out, nil),
		vb: mat.NewVecDense(out, nil),
	}, nil
}

func matrixRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

// writeJSONAtomic writes to a temp file in the target directory and renames
// it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish file: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
