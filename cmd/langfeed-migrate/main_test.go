package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMigratesV1ToV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	require.NoError(t, os.WriteFile(path, []byte("text,label\nma ghar janchu,Roman Nepali\n"), 0o644))

	require.NoError(t, run(path, "v2", "", false, zap.NewNop()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text,label,predicted_language,feedback,correct_language\nma ghar janchu,RomanNep,RomanNep,correct,\n", string(data))

	// running again is a no-op
	require.NoError(t, run(path, "v2", "", false, zap.NewNop()))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestRunRequiresPath(t *testing.T) {
	assert.Error(t, run("", "v2", "", false, zap.NewNop()))
	assert.Error(t, run(filepath.Join(t.TempDir(), "absent.csv"), "v2", "", false, zap.NewNop()))
}

func TestRunRespellsWithinSameSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.csv")
	original := "text,label,predicted_language,feedback,correct_language\n" +
		"ma ghar janchu,Roman Nepali,English,incorrect,Roman Nepali\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	require.NoError(t, run(path, "v2", "", false, zap.NewNop()))
	untouched, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(untouched))

	require.NoError(t, run(path, "v2", "", true, zap.NewNop()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text,label,predicted_language,feedback,correct_language\n"+
		"ma ghar janchu,RomanNep,English,incorrect,RomanNep\n", string(data))
}
