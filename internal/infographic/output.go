package infographic

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Caia-Tech/caia-chartforge/internal/registry"
)

// OCRPrompt is the human turn of generated conversation records.
const OCRPrompt = "<image>\nRead all the text in this infographic, top to bottom."

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// writeConversations writes one conversation record per manifest item as
// JSONL, asking for the OCR text of each image.
func writeConversations(path string, items []ManifestItem) error {
	w, err := registry.Create(path)
	if err != nil {
		return err
	}
	for _, it := range items {
		rec := Conversation{
			ID:    uuid.NewString(),
			Image: it.Image,
			Conversations: []Turn{
				{From: "human", Value: OCRPrompt},
				{From: "gpt", Value: it.OCR},
			},
		}
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
