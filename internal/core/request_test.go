// Package core_test tests request normalization and cache key derivation.
package core_test

import (
	"testing"

	"github.com/book-expert/speech-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGender(t *testing.T) {
	t.Parallel()

	testCases := map[string]core.Gender{
		"Male":   core.GenderMale,
		"m":      core.GenderMale,
		"MALE":   core.GenderMale,
		"man":    core.GenderMale,
		"":       core.GenderFemale,
		"Female": core.GenderFemale,
		"f":      core.GenderFemale,
		" male":  core.GenderFemale,
	}

	for input, expected := range testCases {
		assert.Equal(t, expected, core.ParseGender(input), "input %q", input)
	}
}

func TestEncodingProfiles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/ogg", core.ParseEncoding("OPUS").Profile().MimeType)
	assert.Equal(t, "audio/mpeg", core.ParseEncoding("MP3").Profile().MimeType)
	assert.Equal(t, "audio/wav", core.ParseEncoding("PCM").Profile().MimeType)
	assert.Equal(t, "audio/mpeg", core.ParseEncoding("mp3").Profile().MimeType)

	assert.Equal(t, core.EncodingOpus, core.ParseEncoding("FLAC"))
	assert.Equal(t, core.EncodingOpus, core.ParseEncoding(""))
	assert.Equal(t, "OGG_OPUS", core.Encoding("bogus").Profile().GoogleEncoding)
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	req := core.Normalize(core.Params{Text: "hej"}, core.Defaults{})

	assert.Equal(t, "hej", req.Text())
	assert.Equal(t, "sv-SE", req.Language())
	assert.Equal(t, "sv-SE-Wavenet-A", req.Voice())
	assert.Equal(t, core.GenderFemale, req.Gender())
	assert.Equal(t, core.EncodingOpus, req.Encoding())
	assert.Equal(t, "audio/ogg", req.MimeType())

	_, hasRate := req.Rate()
	_, hasPitch := req.Pitch()

	assert.False(t, hasRate)
	assert.False(t, hasPitch)
}

func TestNormalize_MalformedValuesAreDefaulted(t *testing.T) {
	t.Parallel()

	req := core.Normalize(core.Params{
		Text:     "hej",
		Encoding: "wma",
		Rate:     "fast",
		Pitch:    "NaN",
	}, core.Defaults{Encoding: core.EncodingMP3})

	assert.Equal(t, core.EncodingMP3, req.Encoding())

	_, hasRate := req.Rate()
	_, hasPitch := req.Pitch()

	assert.False(t, hasRate)
	assert.False(t, hasPitch)
}

func TestNormalize_ConfiguredDefaults(t *testing.T) {
	t.Parallel()

	req := core.Normalize(core.Params{Text: "hello", Rate: "1.25", Pitch: "-2"}, core.Defaults{
		Language: "en-US",
		Voice:    "en-US-Wavenet-D",
		Encoding: core.EncodingMP3,
	})

	assert.Equal(t, "en-US", req.Language())
	assert.Equal(t, "en-US-Wavenet-D", req.Voice())
	assert.Equal(t, core.EncodingMP3, req.Encoding())

	rate, hasRate := req.Rate()
	require.True(t, hasRate)
	assert.InEpsilon(t, 1.25, rate, 0.0001)

	pitch, hasPitch := req.Pitch()
	require.True(t, hasPitch)
	assert.InEpsilon(t, -2.0, pitch, 0.0001)
}

func TestCacheKey_Deterministic(t *testing.T) {
	t.Parallel()

	params := core.Params{Text: "hej", Gender: "m", Rate: "1.5", Pitch: "2"}

	first := core.Normalize(params, core.Defaults{})
	second := core.Normalize(params, core.Defaults{})

	assert.Equal(t, first.CacheKey(), second.CacheKey())
}

func TestCacheKey_SensitiveToEveryField(t *testing.T) {
	t.Parallel()

	base := core.Params{
		Text:     "hej",
		Language: "sv-SE",
		Voice:    "sv-SE-Wavenet-A",
		Gender:   "female",
		Encoding: "OPUS",
		Rate:     "1",
		Pitch:    "0",
	}

	variants := map[string]func(p *core.Params){
		"text":     func(p *core.Params) { p.Text = "hallå" },
		"language": func(p *core.Params) { p.Language = "en-US" },
		"voice":    func(p *core.Params) { p.Voice = "sv-SE-Wavenet-B" },
		"gender":   func(p *core.Params) { p.Gender = "male" },
		"encoding": func(p *core.Params) { p.Encoding = "MP3" },
		"rate":     func(p *core.Params) { p.Rate = "1.1" },
		"pitch":    func(p *core.Params) { p.Pitch = "1" },
		"no rate":  func(p *core.Params) { p.Rate = "" },
	}

	baseKey := core.Normalize(base, core.Defaults{}).CacheKey()
	seen := map[string]string{baseKey: "base"}

	for name, mutate := range variants {
		params := base
		mutate(&params)

		key := core.Normalize(params, core.Defaults{}).CacheKey()
		previous, duplicate := seen[key]
		assert.False(t, duplicate, "%s collides with %s", name, previous)

		seen[key] = name
	}
}

func TestCacheKey_SeparatorInTextDoesNotCollide(t *testing.T) {
	t.Parallel()

	first := core.NewSynthesisRequest(`a"|"b`, "c", "d", core.GenderFemale, core.EncodingOpus, nil, nil)
	second := core.NewSynthesisRequest("a", `b"|"c`, "d", core.GenderFemale, core.EncodingOpus, nil, nil)

	assert.NotEqual(t, first.CacheKey(), second.CacheKey())
}

func TestNewSynthesisRequest_CopiesOptionalValues(t *testing.T) {
	t.Parallel()

	rate := 1.5
	req := core.NewSynthesisRequest("hej", "sv-SE", "v", core.GenderMale, core.EncodingPCM, &rate, nil)
	key := req.CacheKey()

	rate = 3

	got, ok := req.Rate()
	require.True(t, ok)
	assert.InEpsilon(t, 1.5, got, 0.0001)
	assert.Equal(t, key, req.CacheKey())
}

func TestNormalize_UnknownAndEmptyEncodingShareFallback(t *testing.T) {
	t.Parallel()

	for _, defaults := range []core.Defaults{{}, {Encoding: core.EncodingMP3}, {Encoding: core.EncodingPCM}} {
		empty := core.Normalize(core.Params{Text: "hej"}, defaults)
		unknown := core.Normalize(core.Params{Text: "hej", Encoding: "foo"}, defaults)

		assert.Equal(t, empty.Encoding(), unknown.Encoding())
		assert.Equal(t, empty.MimeType(), unknown.MimeType())
		assert.Equal(t, empty.CacheKey(), unknown.CacheKey())
	}

	req := core.Normalize(core.Params{Text: "hej", Encoding: " pcm "}, core.Defaults{Encoding: core.EncodingMP3})
	assert.Equal(t, core.EncodingPCM, req.Encoding())
}
