package speech

// Format names an audio encoding understood by the service.
type Format string

const (
	FormatPCM  Format = "pcm"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
	FormatFLAC Format = "flac"
)

// Params are the per-request synthesis parameters.
type Params struct {
	Voice  string
	Speed  float64
	Format Format
}

// normalization mirrors the fixed text normalization options sent with
// every request.
type normalization struct {
	Normalize                          bool `json:"normalize"`
	UnitNormalization                  bool `json:"unit_normalization"`
	URLNormalization                   bool `json:"url_normalization"`
	EmailNormalization                 bool `json:"email_normalization"`
	OptionalPluralizationNormalization bool `json:"optional_pluralization_normalization"`
	PhoneNormalization                 bool `json:"phone_normalization"`
}

type speechRequest struct {
	Model                string        `json:"model"`
	Input                string        `json:"input"`
	Voice                string        `json:"voice"`
	ResponseFormat       Format        `json:"response_format"`
	DownloadFormat       Format        `json:"download_format"`
	Speed                float64       `json:"speed"`
	Stream               bool          `json:"stream"`
	ReturnDownloadLink   bool          `json:"return_download_link"`
	LangCode             string        `json:"lang_code"`
	NormalizationOptions normalization `json:"normalization_options"`
}

func newSpeechRequest(model, langCode, text string, p Params) speechRequest {
	download := p.Format
	if p.Format == FormatPCM {
		download = FormatMP3
	}
	return speechRequest{
		Model:              model,
		Input:              text,
		Voice:              p.Voice,
		ResponseFormat:     p.Format,
		DownloadFormat:     download,
		Speed:              p.Speed,
		Stream:             true,
		ReturnDownloadLink: false,
		LangCode:           langCode,
		NormalizationOptions: normalization{
			Normalize:                          true,
			UnitNormalization:                  false,
			URLNormalization:                   true,
			EmailNormalization:                 true,
			OptionalPluralizationNormalization: true,
			PhoneNormalization:                 true,
		},
	}
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}
