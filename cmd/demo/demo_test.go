package demo

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/errors"
)

func TestRunText(t *testing.T) {
	var out bytes.Buffer
	err := Run(t.Context(), &out, &conf.Settings{}, Options{
		Format:    "text",
		Scenarios: []string{"n-plus-one", "preloaded"},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "== n-plus-one:")
	assert.Contains(t, text, "N+1 query detected")
	assert.Contains(t, text, "Post => [Comments]")
	assert.Contains(t, text, "== preloaded:")
	assert.Contains(t, text, "no notices")
}

func TestRunJSON(t *testing.T) {
	var out bytes.Buffer
	err := Run(t.Context(), &out, &conf.Settings{}, Options{
		Format:    "json",
		Scenarios: []string{"joins-unused", "joins-unused"},
	})
	require.NoError(t, err)

	var results []Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1, "duplicate names run once")
	require.Len(t, results[0].Report.Notices, 1)
	assert.Equal(t, "unused_eager_loading", results[0].Report.Notices[0].Kind.String())
	assert.Equal(t, []string{"Writer"}, results[0].Report.Notices[0].Associations)
}

func TestRunYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(t.Context(), &out, &conf.Settings{}, Options{Format: "yaml"}))

	var results []map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &results))
	assert.NotEmpty(t, results)
	assert.Equal(t, "n-plus-one", results[0]["scenario"])
}

func TestRunRejectsBadInput(t *testing.T) {
	err := Run(t.Context(), &bytes.Buffer{}, &conf.Settings{}, Options{Format: "xml"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = Run(t.Context(), &bytes.Buffer{}, &conf.Settings{}, Options{Format: "text", Scenarios: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n-plus-one")
}

func TestCommandList(t *testing.T) {
	cmd := Command(&conf.Settings{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--list"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "many-to-many")
}
