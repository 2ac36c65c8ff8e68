package core

import (
	"math"
	"strconv"
	"strings"
)

// Default request values.
const (
	DefaultLanguage = "sv-SE"
	DefaultVoice    = "sv-SE-Wavenet-A"
)

// Gender is the voice gender requested from the provider.
type Gender string

// Supported genders.
const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Encoding is the public audio codec choice.
type Encoding string

// Supported encodings.
const (
	EncodingOpus Encoding = "OPUS"
	EncodingMP3  Encoding = "MP3"
	EncodingPCM  Encoding = "PCM"
)

// DefaultEncoding is used when the requested encoding is absent or unknown.
const DefaultEncoding = EncodingOpus

// EncodingProfile holds the provider identifiers and MIME type for an encoding.
type EncodingProfile struct {
	GoogleEncoding string
	PollyFormat    string
	MimeType       string
	Extension      string
}

var encodingProfiles = map[Encoding]EncodingProfile{
	EncodingOpus: {GoogleEncoding: "OGG_OPUS", PollyFormat: "ogg_vorbis", MimeType: "audio/ogg", Extension: ".ogg"},
	EncodingMP3:  {GoogleEncoding: "MP3", PollyFormat: "mp3", MimeType: "audio/mpeg", Extension: ".mp3"},
	EncodingPCM:  {GoogleEncoding: "LINEAR16", PollyFormat: "pcm", MimeType: "audio/wav", Extension: ".wav"},
}

// Profile returns the encoding profile for e, falling back to the default encoding.
func (e Encoding) Profile() EncodingProfile {
	profile, ok := encodingProfiles[e]
	if !ok {
		return encodingProfiles[DefaultEncoding]
	}

	return profile
}

// ParseEncoding maps a free-form encoding name to an Encoding.
// Unrecognized and empty values yield the default encoding.
func ParseEncoding(value string) Encoding {
	encoding := Encoding(strings.ToUpper(strings.TrimSpace(value)))
	if !encoding.known() {
		return DefaultEncoding
	}

	return encoding
}

func (e Encoding) known() bool {
	_, ok := encodingProfiles[e]

	return ok
}

// ParseGender derives a gender from a free-text hint: a leading "m" or "M"
// means male, anything else female.
func ParseGender(value string) Gender {
	if value != "" && (value[0] == 'm' || value[0] == 'M') {
		return GenderMale
	}

	return GenderFemale
}

// Params holds raw, unvalidated request parameters as received from a client.
type Params struct {
	Text     string
	Language string
	Voice    string
	Gender   string
	Encoding string
	Rate     string
	Pitch    string
}

// Defaults holds the values used for absent parameters.
type Defaults struct {
	Language string
	Voice    string
	Encoding Encoding
}

// SynthesisRequest is a normalized, immutable synthesis request.
// Construct it with NewSynthesisRequest or Normalize.
type SynthesisRequest struct {
	text     string
	language string
	voice    string
	gender   Gender
	encoding Encoding
	rate     *float64
	pitch    *float64
}

// NewSynthesisRequest builds a request from already-normalized values.
// Nil rate or pitch means the provider default.
func NewSynthesisRequest(
	text, language, voice string,
	gender Gender,
	encoding Encoding,
	rate, pitch *float64,
) SynthesisRequest {
	return SynthesisRequest{
		text:     text,
		language: language,
		voice:    voice,
		gender:   gender,
		encoding: encoding,
		rate:     copyFloat(rate),
		pitch:    copyFloat(pitch),
	}
}

// Normalize applies defaults to raw parameters. Malformed values are never
// rejected, they fall back to defaults instead.
func Normalize(params Params, defaults Defaults) SynthesisRequest {
	if defaults.Language == "" {
		defaults.Language = DefaultLanguage
	}

	if defaults.Voice == "" {
		defaults.Voice = DefaultVoice
	}

	if defaults.Encoding == "" {
		defaults.Encoding = DefaultEncoding
	}

	language := params.Language
	if language == "" {
		language = defaults.Language
	}

	voice := params.Voice
	if voice == "" {
		voice = defaults.Voice
	}

	encoding := defaults.Encoding
	if parsed := Encoding(strings.ToUpper(strings.TrimSpace(params.Encoding))); parsed.known() {
		encoding = parsed
	}

	return NewSynthesisRequest(
		params.Text,
		language,
		voice,
		ParseGender(params.Gender),
		encoding,
		parseOptionalFloat(params.Rate),
		parseOptionalFloat(params.Pitch),
	)
}

// Text returns the text to synthesize.
func (r SynthesisRequest) Text() string { return r.text }

// Language returns the BCP-47 language code.
func (r SynthesisRequest) Language() string { return r.language }

// Voice returns the provider voice name.
func (r SynthesisRequest) Voice() string { return r.voice }

// Gender returns the voice gender.
func (r SynthesisRequest) Gender() Gender { return r.gender }

// Encoding returns the audio encoding.
func (r SynthesisRequest) Encoding() Encoding { return r.encoding }

// Rate returns the speaking rate and whether one was requested.
func (r SynthesisRequest) Rate() (float64, bool) { return derefFloat(r.rate) }

// Pitch returns the pitch and whether one was requested.
func (r SynthesisRequest) Pitch() (float64, bool) { return derefFloat(r.pitch) }

// MimeType returns the MIME type of the audio produced for this request.
func (r SynthesisRequest) MimeType() string { return r.encoding.Profile().MimeType }

// CacheKey returns a deterministic, order-sensitive fingerprint of every field.
// Fields are quoted before joining, so distinct requests never share a key.
func (r SynthesisRequest) CacheKey() string {
	fields := []string{
		r.text,
		r.language,
		r.voice,
		string(r.gender),
		string(r.encoding),
		formatOptionalFloat(r.rate),
		formatOptionalFloat(r.pitch),
	}

	var builder strings.Builder

	for i, field := range fields {
		if i > 0 {
			builder.WriteByte('|')
		}

		builder.WriteString(strconv.Quote(field))
	}

	return builder.String()
}

func parseOptionalFloat(value string) *float64 {
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}

	return &parsed
}

// formatOptionalFloat renders an absent value as "-", which no float formats to.
func formatOptionalFloat(value *float64) string {
	if value == nil {
		return "-"
	}

	return strconv.FormatFloat(*value, 'g', -1, 64)
}

func copyFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}

	v := *value

	return &v
}

func derefFloat(value *float64) (float64, bool) {
	if value == nil {
		return 0, false
	}

	return *value, true
}
