package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelWriterRoutesErrorsToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := zerolog.New(levelWriter{stdout: &stdout, stderr: &stderr})

	logger.Info().Msg("started")
	logger.Warn().Msg("fallback")
	logger.Error().Msg("failed")

	assert.Contains(t, stdout.String(), "started")
	assert.Contains(t, stdout.String(), "fallback")
	assert.NotContains(t, stdout.String(), "failed")
	assert.Contains(t, stderr.String(), "failed")
}
