package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const (
	defaultTopK = 3
	// NoFAQMatch is returned by Retrieve when nothing overlaps the query.
	NoFAQMatch = "No relevant information found."
)

// FAQ is one question/answer pair from the clinic document.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ClinicInfo is the FAQ document served from FAQ_DATA_PATH.
type ClinicInfo struct {
	ClinicName string            `json:"clinic_name"`
	Address    string            `json:"address"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email"`
	Hours      map[string]string `json:"hours"`
	FAQs       []FAQ             `json:"faqs"`
}

// Embedder turns texts into vectors for semantic FAQ lookup.
type Embedder interface {
	Embed(ctx context.Context, modelID string, texts []string) ([][]float32, error)
}

// KnowledgeBase answers clinic questions from the FAQ document. Retrieval is
// keyword overlap unless an embedding index has been built.
type KnowledgeBase struct {
	info   ClinicInfo
	logger *logging.Logger

	mu       sync.RWMutex
	embedder Embedder
	model    string
	vectors  [][]float32
}

// LoadKnowledgeBase reads the clinic document from path.
func LoadKnowledgeBase(path string, logger *logging.Logger) (*KnowledgeBase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("conversation: open faq data: %w", err)
	}
	defer f.Close()
	return NewKnowledgeBase(f, logger)
}

// NewKnowledgeBase decodes a clinic document.
func NewKnowledgeBase(r io.Reader, logger *logging.Logger) (*KnowledgeBase, error) {
	if logger == nil {
		logger = logging.Default()
	}
	var info ClinicInfo
	if err := json.NewDecoder(r).Decode(&info); err != nil {
		return nil, fmt.Errorf("conversation: decode faq data: %w", err)
	}
	return &KnowledgeBase{info: info, logger: logger}, nil
}

// Info returns the clinic contact details.
func (kb *KnowledgeBase) Info() ClinicInfo {
	if kb == nil {
		return ClinicInfo{}
	}
	return kb.info
}

// BuildIndex embeds every FAQ. On failure the knowledge base keeps using
// keyword retrieval.
func (kb *KnowledgeBase) BuildIndex(ctx context.Context, embedder Embedder, modelID string) error {
	if embedder == nil {
		return errors.New("conversation: embedder required")
	}
	texts := make([]string, len(kb.info.FAQs))
	for i, faq := range kb.info.FAQs {
		texts[i] = formatFAQ(faq)
	}
	vectors, err := embedder.Embed(ctx, modelID, texts)
	if err != nil {
		return fmt.Errorf("conversation: embed faqs: %w", err)
	}
	if len(vectors) != len(texts) {
		return errors.New("conversation: embedding response size mismatch")
	}
	kb.mu.Lock()
	kb.embedder, kb.model, kb.vectors = embedder, modelID, vectors
	kb.mu.Unlock()
	return nil
}

// Retrieve returns up to three FAQ entries relevant to query, formatted as
// "Question: ...\nAnswer: ..." blocks, or NoFAQMatch.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string) string {
	matches := kb.Search(ctx, query, defaultTopK)
	if len(matches) == 0 {
		return NoFAQMatch
	}
	blocks := make([]string, len(matches))
	for i, faq := range matches {
		blocks[i] = formatFAQ(faq)
	}
	return strings.Join(blocks, "\n\n")
}

// Search ranks FAQs for query, best first.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, topK int) []FAQ {
	if kb == nil {
		return nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	kb.mu.RLock()
	embedder, model, vectors := kb.embedder, kb.model, kb.vectors
	kb.mu.RUnlock()

	if embedder != nil {
		results, err := kb.semanticSearch(ctx, embedder, model, vectors, query, topK)
		if err == nil {
			return results
		}
		kb.logger.Warn("semantic faq search failed, using keywords", "error", err)
	}
	return kb.keywordSearch(query, topK)
}

func (kb *KnowledgeBase) keywordSearch(query string, topK int) []FAQ {
	queryWords := wordSet(query)
	type scored struct {
		score int
		index int
	}
	var hits []scored
	for i, faq := range kb.info.FAQs {
		overlap := 0
		for w := range wordSet(faq.Question) {
			if queryWords[w] {
				overlap++
			}
		}
		if overlap > 0 {
			hits = append(hits, scored{score: overlap, index: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]FAQ, len(hits))
	for i, h := range hits {
		out[i] = kb.info.FAQs[h.index]
	}
	return out
}

func (kb *KnowledgeBase) semanticSearch(ctx context.Context, embedder Embedder, model string, vectors [][]float32, query string, topK int) ([]FAQ, error) {
	resp, err := embedder.Embed(ctx, model, []string{query})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, errors.New("conversation: empty query embedding")
	}
	type scored struct {
		score float64
		index int
	}
	results := make([]scored, len(vectors))
	for i, vec := range vectors {
		results[i] = scored{score: cosineSimilarity(resp[0], vec), index: i}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > topK {
		results = results[:topK]
	}
	out := make([]FAQ, len(results))
	for i, r := range results {
		out[i] = kb.info.FAQs[r.index]
	}
	return out, nil
}

func formatFAQ(faq FAQ) string {
	return "Question: " + faq.Question + "\nAnswer: " + faq.Answer
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		set[w] = true
	}
	return set
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
