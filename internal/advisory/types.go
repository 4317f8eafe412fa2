package advisory

// Gemini REST wire types. Only the fields this client uses.

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobPart `json:"inlineData,omitempty"`
}

type geminiBlobPart struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ProfileAnalysis is the advisory model's verdict on a candidate
// profile.
type ProfileAnalysis struct {
	IsBusiness          bool   `json:"is_business"`
	BusinessType        string `json:"business_type"`
	HasWebsite          bool   `json:"has_website"`
	PotentialClient     bool   `json:"potential_client"`
	Score               int    `json:"score"`
	Reason              string `json:"reason"`
	PersonalizedMessage string `json:"personalized_message"`
}

// Accepted reports whether the analysis clears the lead-scoring bar.
func (a *ProfileAnalysis) Accepted() bool {
	return a.Score >= 7 && a.PotentialClient
}

// Action is one step proposed by the advisory model in freeform mode.
type Action struct {
	Action string `json:"action"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}
