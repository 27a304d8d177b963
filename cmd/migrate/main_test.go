package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking/pkg/logging"
)

func TestParseArgs(t *testing.T) {
	cmd, _, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "up", cmd)

	cmd, v, err := parseArgs([]string{"force", "3"})
	require.NoError(t, err)
	assert.Equal(t, "force", cmd)
	assert.Equal(t, 3, v)

	_, _, err = parseArgs([]string{"force"})
	assert.Error(t, err)
	_, _, err = parseArgs([]string{"force", "three"})
	assert.Error(t, err)
	_, _, err = parseArgs([]string{"drop"})
	assert.Error(t, err)
}

func TestRunRequiresDatabaseURL(t *testing.T) {
	err := run("  ", nil, logging.New("error"))
	assert.EqualError(t, err, "DATABASE_URL is required")
}
