package wire

// Format identifies a request/response wire format.
type Format string

const (
	// FormatOpenAI is the OpenAI Chat Completions format.
	FormatOpenAI Format = "openai"

	// FormatClaude is the Anthropic Messages format.
	FormatClaude Format = "claude"

	// FormatGemini is the Google Gemini generateContent format.
	FormatGemini Format = "gemini"

	// FormatOpenAIResponses is the OpenAI Responses format.
	FormatOpenAIResponses Format = "openai-responses"

	// FormatKiro is the AWS CodeWhisperer dialect (JSON request,
	// binary EventStream response).
	FormatKiro Format = "kiro"

	// FormatCopilot is the GitHub Copilot dialect (OpenAI-shaped with
	// editor headers and token exchange).
	FormatCopilot Format = "copilot"

	// FormatAntigravity is the Gemini-CLI variant dialect.
	FormatAntigravity Format = "antigravity"

	// FormatQwen is the Qwen OAuth dialect (OpenAI-shaped).
	FormatQwen Format = "qwen"

	// FormatIFlow is the iFlow dialect (OpenAI-shaped).
	FormatIFlow Format = "iflow"
)

// ClientFormats lists the formats accepted on the client-facing side.
var ClientFormats = []Format{FormatOpenAI, FormatClaude, FormatGemini, FormatOpenAIResponses}

// IsClientFormat reports whether f is a format the gateway accepts from
// clients (as opposed to a provider-only dialect).
func (f Format) IsClientFormat() bool {
	switch f {
	case FormatOpenAI, FormatClaude, FormatGemini, FormatOpenAIResponses:
		return true
	}
	return false
}

// IsOpenAICompatible reports whether f uses OpenAI-shaped requests and
// streaming chunks. Dialects that only differ in URL, headers or small
// request tweaks translate via the OpenAI request shape.
func (f Format) IsOpenAICompatible() bool {
	switch f {
	case FormatOpenAI, FormatCopilot, FormatQwen, FormatIFlow:
		return true
	}
	return false
}

// Normalize maps provider dialects onto the base format their streams
// and responses are shaped as. Client formats map to themselves.
func Normalize(f Format) Format {
	switch f {
	case FormatCopilot, FormatQwen, FormatIFlow, FormatKiro:
		return FormatOpenAI
	case FormatAntigravity:
		return FormatGemini
	}
	return f
}

// String returns the format tag.
func (f Format) String() string {
	return string(f)
}
