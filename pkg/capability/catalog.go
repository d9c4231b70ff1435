package capability

// Builtin returns the built-in model catalog. Client ids carry a vendor
// prefix; backend names are the bot names queried upstream.
func Builtin() []Capability {
	return []Capability{
		// OpenAI
		{ID: "openai-gpt-4o", BackendName: "gpt-4o", OwnedBy: "openai", NativeTools: true, ImageCapable: true, MaxContext: 128000},
		{ID: "openai-gpt-4.1", BackendName: "gpt-4.1", OwnedBy: "openai", NativeTools: true, ImageCapable: true, MaxContext: 1047576},
		{ID: "openai-gpt-4.1-nano", BackendName: "gpt-4.1-nano", OwnedBy: "openai", NativeTools: true, ImageCapable: true, MaxContext: 1047576},
		{ID: "openai-gpt-4.1-mini", BackendName: "gpt-4.1-mini", OwnedBy: "openai", NativeTools: true, ImageCapable: true, MaxContext: 1047576},
		{ID: "openai-o3-mini-high", BackendName: "o3-mini-high", OwnedBy: "openai", Reasoning: true, MaxContext: 200000},
		{ID: "openai-o3", BackendName: "o3", OwnedBy: "openai", NativeTools: true, ImageCapable: true, Reasoning: true, MaxContext: 200000},
		{ID: "openai-o3-pro", BackendName: "o3-pro", OwnedBy: "openai", ImageCapable: true, Reasoning: true, MaxContext: 200000},
		{ID: "openai-o4-mini", BackendName: "o4-mini", OwnedBy: "openai", NativeTools: true, ImageCapable: true, Reasoning: true, MaxContext: 200000},

		// Anthropic
		{ID: "anthropic-claude-3.7-sonnet", BackendName: "claude-3.7-sonnet", OwnedBy: "anthropic", ImageCapable: true, MaxContext: 200000},
		{ID: "anthropic-claude-3.7-sonnet-reasoning", BackendName: "claude-3.7-sonnet-reasoning", OwnedBy: "anthropic", ImageCapable: true, Reasoning: true, MaxContext: 200000},
		{ID: "anthropic-claude-3.7-sonnet-search", BackendName: "claude-3.7-sonnet-search", OwnedBy: "anthropic", ImageCapable: true, MaxContext: 200000},
		{ID: "anthropic-claude-opus-4", BackendName: "claude-opus-4", OwnedBy: "anthropic", NativeTools: true, ImageCapable: true, MaxContext: 200000},
		{ID: "anthropic-claude-sonnet-4", BackendName: "claude-sonnet-4", OwnedBy: "anthropic", NativeTools: true, ImageCapable: true, MaxContext: 200000},
		{ID: "anthropic-claude-opus-4-reasoning", BackendName: "claude-opus-4-reasoning", OwnedBy: "anthropic", ImageCapable: true, Reasoning: true, MaxContext: 200000},
		{ID: "anthropic-claude-sonnet-4-reasoning", BackendName: "claude-sonnet-4-reasoning", OwnedBy: "anthropic", ImageCapable: true, Reasoning: true, MaxContext: 200000},

		// Google
		{ID: "google-gemini-2.5-pro-preview", BackendName: "gemini-2.5-pro-preview", OwnedBy: "google", ImageCapable: true, Reasoning: true, MaxContext: 1048576},
		{ID: "google-gemini-2.5-flash-preview", BackendName: "gemini-2.5-flash-preview", OwnedBy: "google", ImageCapable: true, MaxContext: 1048576},
		{ID: "google-gemini-2.0", BackendName: "gemini-2.0", OwnedBy: "google", ImageCapable: true, MaxContext: 1048576},

		// Meta
		{ID: "meta-llama-4-maverick", BackendName: "llama-4-maverick", OwnedBy: "meta", ImageCapable: true, Reasoning: true, MaxContext: 1048576},

		// DeepSeek
		{ID: "deepseek-r1", BackendName: "deepseek-r1", OwnedBy: "deepseek", Reasoning: true, MaxContext: 128000},

		// xAI
		{ID: "xai-grok-3-mini", BackendName: "grok-3-mini", OwnedBy: "xai", Reasoning: true, MaxContext: 131072},
		{ID: "xai-grok-3", BackendName: "grok-3", OwnedBy: "xai", Reasoning: true, MaxContext: 131072},

		// Perplexity
		{ID: "perplexity-sonar-reasoning", BackendName: "perplexity-sonar-reasoning", OwnedBy: "perplexity", Reasoning: true, MaxContext: 127072},
	}
}
