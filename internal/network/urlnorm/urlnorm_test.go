package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

func TestParseBasic(t *testing.T) {
	p, err := Parse("https://example.com/files/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https", p.Scheme)
	assert.Equal(t, "example.com", p.Host)
	assert.Equal(t, "report.pdf", p.Filename)
	assert.Equal(t, "pdf", p.Extension)
}

func TestParsePrependsScheme(t *testing.T) {
	p, err := Parse("example.com/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "https", p.Scheme)
}

func TestParseRejectsUnsupportedScheme(t *testing.T) {
	_, err := Parse("ftp://example.com/a.zip")
	require.Error(t, err)
	var invalid *task.InvalidURLError
	assert.ErrorAs(t, err, &invalid)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
}

func TestParseNoPathSegment(t *testing.T) {
	p, err := Parse("https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, p.Filename)
}
