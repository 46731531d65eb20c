package submission_test

import (
	"errors"
	"testing"

	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	t.Parallel()

	raw := "https://a.example/\r\n\n  https://b.example/  \nhttps://a.example/\n   \n"

	assert.Equal(t,
		[]string{"https://a.example/", "https://b.example/", "https://a.example/"},
		submission.ParseInput(raw, submission.DedupPreserve))
	assert.Equal(t,
		[]string{"https://a.example/", "https://b.example/"},
		submission.ParseInput(raw, submission.DedupUnique))
	assert.Empty(t, submission.ParseInput(" \n\t\n", submission.DedupPreserve))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, submission.Validate([]string{"https://example.com", "http://example.com/a?b=1"}))
	require.ErrorIs(t, submission.Validate(nil), submission.ErrEmptyBatch)

	err := submission.Validate([]string{
		"https://ok.example/",
		"example.com",
		"ftp://files.example/",
		"https://",
		"http://bad host/",
	})

	var ve *submission.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Invalid, 4)
	assert.Equal(t, "example.com", ve.Invalid[0].URL)
	assert.Equal(t, "URL must be absolute", ve.Invalid[0].Reason)
	assert.Equal(t, "scheme must be http or https", ve.Invalid[1].Reason)
	assert.Contains(t, err.Error(), `"ftp://files.example/"`)
	assert.True(t, submission.IsValidationError(err))
	assert.True(t, submission.IsValidationError(submission.ErrEmptyBatch))
	assert.False(t, submission.IsValidationError(errors.New("other")))
}
