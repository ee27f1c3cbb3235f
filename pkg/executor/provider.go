package executor

import (
	"helios-hq/helios/pkg/wire"
)

// API families. The family decides URL shape and header selection.
const (
	familyOpenAI    = "openai"
	familyAnthropic = "anthropic"
	familyGemini    = "gemini"
	familyResponses = "openai-responses"
)

// ProviderInfo is a provider's static configuration.
type ProviderInfo struct {
	// ID is the stable provider identifier.
	ID string

	// BaseURL is the primary endpoint; AltBaseURLs are alternates
	// selectable by url index.
	BaseURL     string
	AltBaseURLs []string

	// Family selects URL shape and header rules.
	Family string

	// Target is the wire format requests to this provider must use.
	Target wire.Format

	// APIKeyHeader forces the x-api-key header even for providers that
	// would otherwise use a bearer token.
	APIKeyHeader bool

	// OAuth token endpoint configuration for refresh flows.
	TokenURL     string
	ClientID     string
	ClientSecret string
	// RefreshStyle is one of "json", "form", "basic", "kiro".
	RefreshStyle string
}

// builtinProviders is the static provider catalog. User-added
// OpenAI/Anthropic-compatible nodes are not listed; their base URL and
// api type ride on the connection record.
var builtinProviders = map[string]ProviderInfo{
	"openai": {
		ID:      "openai",
		BaseURL: "https://api.openai.com/v1",
		Family:  familyOpenAI,
		Target:  wire.FormatOpenAI,
	},
	"codex": {
		ID:           "codex",
		BaseURL:      "https://chatgpt.com/backend-api/codex",
		Family:       familyResponses,
		Target:       wire.FormatOpenAIResponses,
		TokenURL:     "https://auth.openai.com/oauth/token",
		ClientID:     "app_EMoamEEZ73f0CkXaXp7hrann",
		RefreshStyle: "form",
	},
	"claude": {
		ID:           "claude",
		BaseURL:      "https://api.anthropic.com/v1/messages",
		Family:       familyAnthropic,
		Target:       wire.FormatClaude,
		TokenURL:     "https://console.anthropic.com/v1/oauth/token",
		ClientID:     "9d1c250a-e61b-44d9-88ed-5944d1962f5e",
		RefreshStyle: "json",
	},
	"gemini": {
		ID:      "gemini",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		Family:  familyGemini,
		Target:  wire.FormatGemini,
	},
	"gemini-cli": {
		ID:           "gemini-cli",
		BaseURL:      "https://cloudcode-pa.googleapis.com/v1internal",
		Family:       familyGemini,
		Target:       wire.FormatAntigravity,
		TokenURL:     "https://oauth2.googleapis.com/token",
		ClientID:     "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com",
		ClientSecret: "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",
		RefreshStyle: "form",
	},
	"antigravity": {
		ID:           "antigravity",
		BaseURL:      "https://cloudcode-pa.googleapis.com/v1internal",
		Family:       familyGemini,
		Target:       wire.FormatAntigravity,
		TokenURL:     "https://oauth2.googleapis.com/token",
		ClientID:     "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com",
		ClientSecret: "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",
		RefreshStyle: "form",
	},
	"qwen": {
		ID:           "qwen",
		BaseURL:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Family:       familyOpenAI,
		Target:       wire.FormatQwen,
		TokenURL:     "https://chat.qwen.ai/api/v1/oauth2/token",
		ClientID:     "f0304373b74a44d2b584a3fb70ca9e56",
		RefreshStyle: "form",
	},
	"iflow": {
		ID:           "iflow",
		BaseURL:      "https://apis.iflow.cn/v1",
		Family:       familyOpenAI,
		Target:       wire.FormatIFlow,
		TokenURL:     "https://iflow.cn/oauth/token",
		ClientID:     "10009311001",
		ClientSecret: "4Z3YjXycVsQvyGF6etEUOvZAu0zWIwmzDkBHczEazDU",
		RefreshStyle: "basic",
	},
	"glm": {
		ID:           "glm",
		BaseURL:      "https://open.bigmodel.cn/api/anthropic/v1/messages",
		Family:       familyAnthropic,
		Target:       wire.FormatClaude,
		APIKeyHeader: true,
	},
	"kimi": {
		ID:           "kimi",
		BaseURL:      "https://api.moonshot.ai/anthropic/v1/messages",
		Family:       familyAnthropic,
		Target:       wire.FormatClaude,
		APIKeyHeader: true,
	},
	"minimax": {
		ID:           "minimax",
		BaseURL:      "https://api.minimax.io/anthropic/v1/messages",
		Family:       familyAnthropic,
		Target:       wire.FormatClaude,
		APIKeyHeader: true,
	},
	"openrouter": {
		ID:      "openrouter",
		BaseURL: "https://openrouter.ai/api/v1",
		Family:  familyOpenAI,
		Target:  wire.FormatOpenAI,
	},
	"kiro": {
		ID:           "kiro",
		BaseURL:      "https://codewhisperer.us-east-1.amazonaws.com/generateAssistantResponse",
		Family:       familyOpenAI,
		Target:       wire.FormatKiro,
		TokenURL:     "https://prod.us-east-1.auth.desktop.kiro.dev/refreshToken",
		RefreshStyle: "kiro",
	},
	"copilot": {
		ID:      "copilot",
		BaseURL: "https://api.githubcopilot.com",
		Family:  familyOpenAI,
		Target:  wire.FormatCopilot,
	},
}

// Providers returns the static catalog.
func Providers() map[string]ProviderInfo {
	out := make(map[string]ProviderInfo, len(builtinProviders))
	for k, v := range builtinProviders {
		out[k] = v
	}
	return out
}

// TargetFormat returns the wire format a provider expects. Unknown
// providers default to OpenAI, the compatible-node assumption.
func TargetFormat(provider, apiType string) wire.Format {
	if info, ok := builtinProviders[provider]; ok {
		return info.Target
	}
	if apiType == familyAnthropic {
		return wire.FormatClaude
	}
	return wire.FormatOpenAI
}
