package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/duplicheck/duplicheck/internal/detector"
	"github.com/duplicheck/duplicheck/internal/tokenizer"
	"github.com/duplicheck/duplicheck/pkg/config"
)

var vocabulary = buildVocabulary(2000)

func buildVocabulary(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	return words
}

func syntheticDocument(rng *rand.Rand, sentences, tokensPerSentence int) string {
	var b strings.Builder
	for s := 0; s < sentences; s++ {
		for w := 0; w < tokensPerSentence; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(vocabulary[rng.Intn(len(vocabulary))])
		}
		b.WriteString(". ")
	}
	return b.String()
}

func seededEngine(b *testing.B, docs int) *detector.Engine {
	b.Helper()
	cfg := config.DetectorConfig{
		MinSentenceTokens:           3,
		MinOverlapFraction:          0.30,
		SentenceThreshold:           50,
		HighDuplicationThreshold:    30,
		DocumentComparisonThreshold: 15,
		MaxDocumentBytes:            1 << 20,
		MaxResults:                  50,
		ChunkSize:                   32,
	}
	engine := detector.New(cfg, tokenizer.New(tokenizer.DefaultStopwords, 3), nil, nil, nil)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < docs; i++ {
		doc := detector.Document{
			ID:   fmt.Sprintf("doc-%04d", i),
			Text: syntheticDocument(rng, 20, 12),
		}
		if _, err := engine.AddDocument(context.Background(), doc); err != nil {
			b.Fatalf("seeding document %s: %v", doc.ID, err)
		}
	}
	return engine
}

func BenchmarkAddDocument(b *testing.B) {
	engine := seededEngine(b, 0)
	rng := rand.New(rand.NewSource(7))
	texts := make([]string, b.N)
	for i := range texts {
		texts[i] = syntheticDocument(rng, 20, 12)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := detector.Document{ID: fmt.Sprintf("bench-%d", i), Text: texts[i]}
		if _, err := engine.AddDocument(context.Background(), doc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCheckPlagiarism(b *testing.B) {
	for _, docs := range []int{100, 500} {
		b.Run(fmt.Sprintf("corpus-%d", docs), func(b *testing.B) {
			engine := seededEngine(b, docs)
			rng := rand.New(rand.NewSource(99))
			query := syntheticDocument(rng, 10, 12)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.CheckPlagiarism(context.Background(), query, detector.Options{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCheckPlagiarismParallel(b *testing.B) {
	engine := seededEngine(b, 200)
	rng := rand.New(rand.NewSource(3))
	query := syntheticDocument(rng, 10, 12)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.CheckPlagiarism(context.Background(), query, detector.Options{}); err != nil {
				b.Fatal(err)
			}
		}
	})
}
