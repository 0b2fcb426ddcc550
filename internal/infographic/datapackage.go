package infographic

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// datapackage mirrors the fields read from a Frictionless datapackage.json.
type datapackage struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PackageMeta reads title and description from datapackage.json in the
// folder holding csvPath. Missing files yield empty strings.
func PackageMeta(csvPath string) (title, description string, err error) {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(csvPath), "datapackage.json"))
	if errors.Is(err, os.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}

	var dp datapackage
	if err := json.Unmarshal(data, &dp); err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(dp.Title)
	if title == "" {
		title = strings.TrimSpace(dp.Name)
	}
	return title, strings.TrimSpace(dp.Description), nil
}
