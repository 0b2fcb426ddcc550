package curation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchOneToOne(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "a", "one_base.png"), "1")
	writeFile(t, filepath.Join(src, "a", "dup_base.png"), "2")
	writeFile(t, filepath.Join(src, "b", "dup_base.png"), "3")
	writeFile(t, filepath.Join(src, "b", "two_base.png"), "4")
	writeFile(t, filepath.Join(src, "b", "three_base.png"), "5")
	writeFile(t, filepath.Join(src, "b", "ignored.png"), "6")

	csvPath := filepath.Join(root, "meta.csv")
	writeFile(t, csvPath, "filename,label\n"+
		"x/One_base.png,first\n"+
		"two_base.png,second\n"+
		"two_base.png,second again\n"+
		"dup_base.png,dup\n")

	cfg := DefaultPairConfig()
	cfg.SourceDir = src
	cfg.DestDir = filepath.Join(root, "dest")
	cfg.CSVPath = csvPath
	cfg.OutputCSV = filepath.Join(root, "filtered.csv")

	sum, err := MatchOneToOne(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Occurrences)
	assert.Equal(t, 4, sum.Unique)
	assert.Equal(t, 1, sum.Candidates)
	assert.Equal(t, 1, sum.Copied)
	require.Len(t, sum.Skips, 3)

	phases := map[string]string{}
	for _, s := range sum.Skips {
		phases[s.Filename] = s.Phase
	}
	assert.Equal(t, PhaseSourceScan, phases["dup_base.png"])
	assert.Equal(t, PhaseCSVMatch, phases["two_base.png"])
	assert.Equal(t, PhaseCSVMatch, phases["three_base.png"])

	assert.FileExists(t, filepath.Join(root, "dest", "one_base.png"))
	out, err := os.ReadFile(cfg.OutputCSV)
	require.NoError(t, err)
	assert.Equal(t, "filename,label\nx/One_base.png,first\n", string(out))
	assert.FileExists(t, filepath.Join(root, "filtered_skip_report.csv"))
}

func TestMatchOneToOne_MissingColumn(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "meta.csv"), "name,label\na,b\n")
	cfg := DefaultPairConfig()
	cfg.SourceDir = root
	cfg.DestDir = filepath.Join(root, "d")
	cfg.CSVPath = filepath.Join(root, "meta.csv")
	cfg.OutputCSV = filepath.Join(root, "o.csv")
	_, err := MatchOneToOne(context.Background(), cfg)
	assert.Error(t, err)
}
