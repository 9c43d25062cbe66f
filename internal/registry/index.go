package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

// HNSW parameters sized for a few thousand 512-dim face vectors.
const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 100
)

// ErrIndexEmpty is returned when searching an index with no vectors.
var ErrIndexEmpty = errors.New("index not initialized")

// Neighbor is one approximate nearest-identity hit.
type Neighbor struct {
	Identity   facematch.Identity `json:"identity"`
	Similarity float64            `json:"similarity"` // cosine similarity
}

// NearestIndex is an in-memory HNSW graph over vector encodings. It answers
// "who looks closest" for operator diagnostics; sign-in decisions always go through
// facematch.Match over the full gallery.
type NearestIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	dim   int
}

// NewNearestIndex creates an empty index.
func NewNearestIndex() *NearestIndex {
	return &NearestIndex{}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the vector entries of a gallery.
// Geometry entries and zero vectors are skipped. All vectors must share one length.
func (x *NearestIndex) Build(gallery []facematch.GalleryEntry) error {
	g := newGraph()
	dim := 0
	for _, entry := range gallery {
		enc := entry.Encoding
		if enc.Kind != facematch.KindVector || enc.IsZero() || isZeroVector(enc.Values) {
			continue
		}
		if dim == 0 {
			dim = enc.Len()
		} else if enc.Len() != dim {
			return fmt.Errorf("indexing %q: %w", entry.Identity, &facematch.ShapeMismatchError{
				Want: facematch.KindVector, Got: enc.Kind, WantLen: dim, GotLen: enc.Len(),
				Metric: facematch.MetricCosine,
			})
		}
		g.Add(hnsw.MakeNode(string(entry.Identity), enc.Float32s()))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if dim == 0 {
		x.graph, x.dim = nil, 0
		return nil
	}
	x.graph, x.dim = g, dim
	return nil
}

// Nearest returns up to k identities closest to the query, most similar first.
func (x *NearestIndex) Nearest(query facematch.Encoding, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || x.graph.Len() == 0 {
		return nil, ErrIndexEmpty
	}
	if query.Kind != facematch.KindVector || query.Len() != x.dim {
		return nil, &facematch.ShapeMismatchError{
			Want: facematch.KindVector, Got: query.Kind, WantLen: x.dim, GotLen: query.Len(),
			Metric: facematch.MetricCosine,
		}
	}
	if k <= 0 {
		return nil, nil
	}

	nodes := x.graph.Search(query.Float32s(), k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		// Recompute in float64 so the number agrees with facematch.Cosine.
		values := make([]float64, len(n.Value))
		for i, v := range n.Value {
			values[i] = float64(v)
		}
		neighbors = append(neighbors, Neighbor{
			Identity:   facematch.Identity(n.Key),
			Similarity: facematch.Cosine(query.Values, values),
		})
	}
	return neighbors, nil
}

// Len returns the number of indexed identities.
func (x *NearestIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}

// Save persists the graph to path. An empty index removes the file.
func (x *NearestIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing HNSW index file: %w", err)
		}
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	return nil
}

// Load replaces the index with a graph saved by Save. A missing file leaves the index empty.
func (x *NearestIndex) Load(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}
	g.Distance = hnsw.CosineDistance

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph, x.dim = g, g.Dims()
	return nil
}

func isZeroVector(v []float64) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
