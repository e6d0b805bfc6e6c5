package session

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/embedding"
)

// ModelSource locates the embedder artifact and the corpus used to train it.
type ModelSource struct {
	ModelPath  string
	CorpusPath string
}

// Initialize prepares a trainable embedder: the saved model is loaded when
// present, otherwise the model is trained from the corpus and saved. With
// neither available the embedder stays untrained.
func Initialize(ctx context.Context, model embedding.Trainable, normalizer Normalizer, src ModelSource, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("embedder", model.Name()))

	if src.ModelPath != "" {
		err := model.Load(src.ModelPath)
		if err == nil {
			log.Info("embedding model loaded", zap.String("path", src.ModelPath))
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading embedding model: %w", err)
		}
	}

	if src.CorpusPath == "" {
		log.Warn("no embedding model or training corpus found, using an untrained model")
		return nil
	}

	if _, err := os.Stat(src.CorpusPath); errors.Is(err, fs.ErrNotExist) {
		log.Warn("training corpus not found, using an untrained model", zap.String("corpus", src.CorpusPath))
		return nil
	}

	sentences, err := Train(ctx, model, normalizer, src)
	if err != nil {
		return err
	}
	log.Info("embedding model trained", zap.Int("sentences", sentences), zap.String("path", src.ModelPath))

	return nil
}

// Train retrains the model on the corpus and saves it when a model path is
// set. It returns the number of sentences used.
func Train(ctx context.Context, model embedding.Trainable, normalizer Normalizer, src ModelSource) (int, error) {
	sentences, err := ReadCorpus(src.CorpusPath)
	if err != nil {
		return 0, err
	}

	corpus := make([][]string, 0, len(sentences))
	for _, sentence := range sentences {
		if tokens := normalizer.Normalize(sentence); len(tokens) > 0 {
			corpus = append(corpus, tokens)
		}
	}

	if err := model.Retrain(ctx, corpus); err != nil {
		return 0, fmt.Errorf("training embedding model: %w", err)
	}

	if src.ModelPath != "" {
		if err := model.Save(src.ModelPath); err != nil {
			return 0, fmt.Errorf("saving embedding model: %w", err)
		}
	}

	return len(corpus), nil
}

// ReadCorpus reads a CSV file with a header row. Every following row is one
// sentence made of its cells joined by spaces.
func ReadCorpus(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		sentences []string
		header    = true
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}

		sentence := strings.TrimSpace(strings.Join(record, " "))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}

	return sentences, nil
}
