package curation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s/%03d.png", prefix, i)
	}
	return out
}

func total(m map[string][]string) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

func TestEquitableTake_RedistributesShortfall(t *testing.T) {
	groups := map[string][]string{
		"a": items("a", 5),
		"b": items("b", 1),
		"c": items("c", 10),
	}
	got := EquitableTake(groups, 9)
	assert.Len(t, got["a"], 4)
	assert.Len(t, got["b"], 1)
	assert.Len(t, got["c"], 4)
	assert.Equal(t, items("a", 4), got["a"], "takes items in order")
}

func TestEquitableTake_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 200; trial++ {
		groups := map[string][]string{}
		avail := 0
		for g := 0; g < 1+rng.IntN(6); g++ {
			n := rng.IntN(20)
			groups[fmt.Sprintf("g%d", g)] = items(fmt.Sprintf("g%d", g), n)
			avail += n
		}
		target := rng.IntN(60)
		got := EquitableTake(groups, target)
		require.Equal(t, min(target, avail), total(got), "trial %d", trial)
		for g, sel := range got {
			assert.LessOrEqual(t, len(sel), len(groups[g]))
		}
	}
}

func TestEquitableTake_BalancedWhenGroupsAreLarge(t *testing.T) {
	groups := map[string][]string{
		"x": items("x", 30), "y": items("y", 30), "z": items("z", 30), "w": items("w", 30),
	}
	for target := 0; target <= 30; target++ {
		got := EquitableTake(groups, target)
		lo, hi := 1<<30, 0
		for _, sel := range got {
			lo = min(lo, len(sel))
			hi = max(hi, len(sel))
		}
		assert.Equal(t, target, total(got))
		assert.LessOrEqual(t, hi-lo, 1, "target %d", target)
	}
}

func TestEquitableTake_Empty(t *testing.T) {
	assert.Empty(t, EquitableTake(nil, 10))
	got := EquitableTake(map[string][]string{"a": items("a", 3)}, 0)
	assert.Empty(t, got["a"])
}

func TestGroupKey(t *testing.T) {
	tests := []struct {
		path      string
		top, tail int
		want      string
	}{
		{"stageA/chart_qa/img/001.png", 0, 0, "stageA/chart_qa/img"},
		{`stageA\chart_qa\001.png`, 0, 0, "stageA/chart_qa"},
		{"stageA/chart_qa/img/001.png", 2, 0, "stageA/chart_qa"},
		{"stageA/chart_qa/img/001.png", 0, 1, "img"},
		{"./a/../b/001.png", 0, 0, "b"},
		{"001.png", 0, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupKey(tt.path, tt.top, tt.tail), tt.path)
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestSampler_Run(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "imgs")
	var lines string
	for _, g := range []string{"task1", "task2"} {
		for i := 0; i < 3; i++ {
			rel := fmt.Sprintf("%s/%d.png", g, i)
			writeFile(t, filepath.Join(images, rel), "png-"+rel)
			lines += fmt.Sprintf(`{"image":%q,"q":"how many?"}`+"\n", rel)
		}
	}
	// duplicate record and a record without an image
	lines += `{"image":"task1/0.png","q":"again"}` + "\n" + `{"q":"orphan"}` + "\n" + "not json\n"
	ann := filepath.Join(root, "anns.jsonl")
	writeFile(t, ann, lines)

	out := filepath.Join(root, "out")
	cfg := DefaultSamplerConfig()
	cfg.Inputs = []string{ann, filepath.Join(root, "missing.json")}
	cfg.Target = 4
	cfg.ImagesRoot = images
	cfg.CopyTo = filepath.Join(out, "picked")
	cfg.CopyRestTo = filepath.Join(out, "rest")
	cfg.OutAnn = filepath.Join(out, "picked.json")
	cfg.OutRestAnn = filepath.Join(out, "rest.jsonl")
	cfg.OutCSV = filepath.Join(out, "picked.csv")

	s, err := NewSampler(cfg)
	require.NoError(t, err)
	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Selected)
	assert.Equal(t, 2, sum.Remainder)
	assert.Equal(t, 4, sum.CopiedSelected)
	assert.Zero(t, sum.MissingSelected)
	require.Len(t, sum.Groups, 2)
	assert.Equal(t, GroupSummary{Group: "task1", Selected: 2, Available: 3}, sum.Groups[0])

	assert.FileExists(t, filepath.Join(out, "picked", "task1", "0.png"))
	assert.FileExists(t, filepath.Join(out, "picked", "task2", "1.png"))
	assert.FileExists(t, filepath.Join(out, "rest", "task1", "2.png"))

	picked, err := LoadRecords(cfg.OutAnn)
	require.NoError(t, err)
	assert.Len(t, picked, 5, "both records of task1/0.png follow the image")
	rest, err := LoadRecords(cfg.OutRestAnn)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	csvData, err := os.ReadFile(cfg.OutCSV)
	require.NoError(t, err)
	assert.Equal(t, "image,group\ntask1/0.png,task1\ntask1/1.png,task1\ntask2/0.png,task2\ntask2/1.png,task2\n", string(csvData))
}

func TestSampler_DryRunAndFlat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "g", "a.png"), "x")
	ann := filepath.Join(root, "anns.json")
	writeFile(t, ann, `[{"image":"g/a.png"},{"image":"g/missing.png"}]`)

	cfg := DefaultSamplerConfig()
	cfg.Inputs = []string{ann}
	cfg.ImagesRoot = root
	cfg.Target = 10
	cfg.DryRun = true
	cfg.Flat = true
	cfg.CopyTo = filepath.Join(root, "picked")
	cfg.CopyRestTo = filepath.Join(root, "rest")
	cfg.OutAnn = filepath.Join(root, "p.json")
	cfg.OutRestAnn = filepath.Join(root, "r.json")

	s, err := NewSampler(cfg)
	require.NoError(t, err)
	sum, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.CopiedSelected)
	assert.Equal(t, 1, sum.MissingSelected)
	assert.NoDirExists(t, cfg.CopyTo)
}

func TestSampler_NoRecords(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "obj.json"), `{"image":"a.png"}`)
	cfg := DefaultSamplerConfig()
	cfg.Inputs = []string{filepath.Join(root, "obj.json")}
	s, err := NewSampler(cfg)
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestSamplerConfig_Validate(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.Top, cfg.Tail = 1, 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultSamplerConfig()
	cfg.Target = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultSamplerConfig()
	cfg.Inputs = nil
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"input.json"}, cfg.Inputs)
}

func TestLoadRecords_NotArray(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.json")
	writeFile(t, p, `{"a":1}`)
	_, err := LoadRecords(p)
	assert.ErrorIs(t, err, ErrNotArray)
}
