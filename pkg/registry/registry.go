package registry

import (
	"fmt"
	"strings"
)

// ModelNotAvailableError is returned when a requested model cannot be served
// by any provider, including after the alternative search has been exhausted.
type ModelNotAvailableError struct {
	Model    string // The model that could not be resolved.
	Fallback string // Suggested fallback model, if any.
}

func (e *ModelNotAvailableError) Error() string {
	if e.Fallback != "" {
		return fmt.Sprintf("model %q not available (try %q)", e.Model, e.Fallback)
	}
	return fmt.Sprintf("model %q not available", e.Model)
}

// Provider identifiers used throughout the module.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderXAI       = "xai"
)

// Pricing holds per-million-token USD prices for a model. Image-priced models
// set Image instead, which short-circuits token-based estimation.
type Pricing struct {
	Input  float64 // USD per 1M input tokens.
	Output float64 // USD per 1M output tokens.
	Image  float64 // Flat USD per generated image (0 for text models).
}

// providerRule associates substring keywords with a provider tag. Rules are
// evaluated in slice order; match order is part of the contract.
type providerRule struct {
	keywords []string
	provider string
}

// alternative is one (model, provider) candidate in the fallback search.
type alternative struct {
	model    string
	provider string
}

// Registry holds the alias, pricing, capability, and native-file tables.
// All tables are populated at construction and never mutated afterwards, so
// a Registry is safe for concurrent use.
type Registry struct {
	aliases      map[string]string
	pricing      map[string]Pricing
	capabilities map[string][]string
	nativeFiles  map[string][]string
	rules        []providerRule
	validPrefix  map[string][]string
	alternatives map[string][]alternative
	active       map[string]struct{} // nil means all providers are considered available
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithActiveProviders restricts validity to the given providers. A pair whose
// provider is outside the set fails validation, which sends resolution
// through the alternative search. Callers typically pass the providers for
// which credentials are configured.
func WithActiveProviders(providers ...string) Option {
	return func(r *Registry) {
		r.active = make(map[string]struct{}, len(providers))
		for _, p := range providers {
			r.active[p] = struct{}{}
		}
	}
}

// New creates a Registry with the built-in tables.
func New(opts ...Option) *Registry {
	r := &Registry{
		aliases:      defaultAliases(),
		pricing:      defaultPricing(),
		capabilities: defaultCapabilities(),
		nativeFiles:  defaultNativeFiles(),
		rules:        defaultProviderRules(),
		validPrefix:  defaultValidPrefixes(),
		alternatives: defaultAlternatives(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func defaultAliases() map[string]string {
	return map[string]string{
		// Smart routing.
		"smart":    "gpt-5",
		"fast":     "gpt-5-mini",
		"cheap":    "gpt-4.1-nano",
		"creative": "claude-sonnet-4",

		// Provider shortcuts.
		"gpt":    "gpt-5",
		"claude": "claude-sonnet-4",
		"gemini": "gemini-2.5-flash",
		"grok":   "grok-4",

		// Task-specific.
		"coding":   "grok-code-fast-1",
		"analysis": "claude-opus-4",
		"research": "o3-deep-research",

		// Image models. Claude does not generate images, so its image alias
		// points at DALL-E.
		"image":        "dall-e-3",
		"gpt-image":    "dall-e-3",
		"claude-image": "dall-e-3",
		"gemini-image": "gemini-2.5-flash-image-preview",
		"grok-image":   "grok-2-image-1212",
	}
}

func defaultPricing() map[string]Pricing {
	return map[string]Pricing{
		// OpenAI.
		"gpt-5":        {Input: 1.25, Output: 10.00},
		"gpt-5-mini":   {Input: 0.25, Output: 2.00},
		"gpt-5-nano":   {Input: 0.05, Output: 0.40},
		"gpt-4.1":      {Input: 2.00, Output: 8.00},
		"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
		"gpt-4.1-nano": {Input: 0.10, Output: 0.40},
		"gpt-4o":       {Input: 5.00, Output: 15.00},
		"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
		"gpt-image-1":  {Image: 0.042},
		"dall-e-3":     {Image: 0.04},
		"dall-e-2":     {Image: 0.02},

		// Anthropic.
		"claude-opus-4-1":   {Input: 15.00, Output: 75.00},
		"claude-opus-4":     {Input: 15.00, Output: 75.00},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},

		// Google.
		"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		"gemini-2.5-flash": {Input: 0.10, Output: 0.40},
		"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
		"gemini-1.5-flash": {Input: 0.075, Output: 0.30},

		// xAI.
		"grok-4":            {Input: 3.00, Output: 15.00},
		"grok-3":            {Input: 3.00, Output: 15.00},
		"grok-3-mini":       {Input: 0.30, Output: 0.50},
		"grok-code-fast-1":  {Input: 0.20, Output: 1.50},
		"grok-2-image-1212": {Image: 0.07},
	}
}

func defaultCapabilities() map[string][]string {
	return map[string][]string{
		// Text generation.
		"gpt-5":            {"text", "reasoning", "code", "tools"},
		"gpt-5-mini":       {"text", "code", "tools"},
		"claude-opus-4":    {"text", "reasoning", "analysis", "vision"},
		"claude-sonnet-4":  {"text", "reasoning", "vision", "tools"},
		"gemini-2.5-pro":   {"text", "vision", "audio", "tools", "web_search"},
		"gemini-2.5-flash": {"text", "vision", "tools", "web_search"},
		"grok-4":           {"text", "reasoning", "vision", "web_search"},
		"grok-3":           {"text", "reasoning"},

		// Image generation.
		"dall-e-3":                       {"image_generation"},
		"dall-e-2":                       {"image_generation"},
		"gemini-2.5-flash-image-preview": {"image_generation"},
		"grok-2-image-1212":              {"image_generation"},

		// Audio.
		"whisper-1": {"audio_transcription"},
		"tts-1":     {"text_to_speech"},
	}
}

// MIME types for documents that some models ingest natively.
const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC      = "application/msword"
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
)

func defaultNativeFiles() map[string][]string {
	docTypes := []string{mimePDF, mimeDOCX, mimeDOC, mimeText, mimeMarkdown}

	return map[string][]string{
		"gemini-2.5-pro":        docTypes,
		"gemini-2.5-flash":      docTypes,
		"gemini-2.5-flash-lite": docTypes,
		"gemini-1.5-pro":        docTypes,
		"gemini-1.5-flash":      docTypes,
		"gemini-1.0-pro":        docTypes,
	}
}

// defaultProviderRules returns the ordered keyword rules used to infer a
// provider from a model name. The order is fixed: openai, anthropic, google,
// xai. Unknown models default to openai.
func defaultProviderRules() []providerRule {
	return []providerRule{
		{keywords: []string{"gpt", "dall-e", "whisper", "tts"}, provider: ProviderOpenAI},
		{keywords: []string{"claude"}, provider: ProviderAnthropic},
		{keywords: []string{"gemini"}, provider: ProviderGoogle},
		{keywords: []string{"grok"}, provider: ProviderXAI},
	}
}

func defaultValidPrefixes() map[string][]string {
	return map[string][]string{
		ProviderOpenAI:    {"gpt", "dall-e", "whisper", "tts", "o3"},
		ProviderAnthropic: {"claude"},
		ProviderGoogle:    {"gemini"},
		ProviderXAI:       {"grok"},
	}
}

// defaultAlternatives returns the fallback search table. Keys are the
// *originally requested* names, not the canonical models they map to.
func defaultAlternatives() map[string][]alternative {
	smart := []alternative{
		{"claude-sonnet-4", ProviderAnthropic},
		{"gemini-2.5-flash", ProviderGoogle},
		{"grok-4", ProviderXAI},
	}
	economical := []alternative{
		{"gpt-4.1-mini", ProviderOpenAI},
		{"claude-3-5-haiku", ProviderAnthropic},
		{"gemini-2.5-flash", ProviderGoogle},
		{"grok-3-mini", ProviderXAI},
	}

	return map[string][]alternative{
		"smart": smart,
		"gpt":   smart,
		"fast":  economical,
		"cheap": economical,
	}
}

// Resolve maps a model name or alias to a canonical (model, provider) pair.
// When provider is empty it is inferred from the model name using the ordered
// keyword rules. If the resulting pair is invalid, the alternative table is
// searched using the originally requested name; the first alternative that
// validates wins. Resolution failure returns a *ModelNotAvailableError.
func (r *Registry) Resolve(model, provider string) (string, string, error) {
	resolved := model
	if canonical, ok := r.aliases[model]; ok {
		resolved = canonical
	}

	resolvedProvider := provider
	if resolvedProvider == "" {
		resolvedProvider = r.detectProvider(resolved)
	}

	if r.validCombination(resolved, resolvedProvider) {
		return resolved, resolvedProvider, nil
	}

	if altModel, altProvider, ok := r.findAlternative(model); ok {
		return altModel, altProvider, nil
	}

	return "", "", &ModelNotAvailableError{Model: resolved}
}

// ResolveImageModel resolves a model for image generation. A model name that
// contains "image" goes through normal resolution; otherwise the provider's
// default image model is used (OpenAI when no provider is given).
func (r *Registry) ResolveImageModel(model, provider string) (string, string, error) {
	if model != "" && strings.Contains(model, "image") {
		return r.Resolve(model, provider)
	}

	switch provider {
	case ProviderGoogle:
		return "gemini-2.5-flash-image-preview", ProviderGoogle, nil
	case ProviderXAI:
		return "grok-2-image-1212", ProviderXAI, nil
	case ProviderOpenAI:
		return "gpt-image-1", ProviderOpenAI, nil
	default:
		return "gpt-image-1", ProviderOpenAI, nil
	}
}

// detectProvider infers a provider tag from the model name using the ordered
// rule table. Unknown names fall through to openai.
func (r *Registry) detectProvider(model string) string {
	lower := strings.ToLower(model)
	for _, rule := range r.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.provider
			}
		}
	}

	return ProviderOpenAI
}

// validCombination reports whether the provider is known, active, and its
// allowed name prefixes match the model. Matching is substring-based; the
// ruleset is a ported fixture, not a precise classifier.
func (r *Registry) validCombination(model, provider string) bool {
	if r.active != nil {
		if _, ok := r.active[provider]; !ok {
			return false
		}
	}

	prefixes, ok := r.validPrefix[provider]
	if !ok {
		return false
	}

	lower := strings.ToLower(model)
	for _, p := range prefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}

	return false
}

// findAlternative runs the fallback search for the originally requested name.
func (r *Registry) findAlternative(requested string) (string, string, bool) {
	for _, alt := range r.alternatives[requested] {
		if r.validCombination(alt.model, alt.provider) {
			return alt.model, alt.provider, true
		}
	}

	return "", "", false
}

// defaultMaxTokensForEstimate is assumed when the caller does not supply a
// max-token value to EstimateCost.
const defaultMaxTokensForEstimate = 1000

// EstimateCost estimates the USD cost of a request. Token count is
// approximated as len(text)/4; this is a deliberate heuristic, not a
// tokenizer, and can drift from provider-reported usage. Models missing from
// the pricing table estimate to 0. Image-priced
// models return their flat per-image price.
func (r *Registry) EstimateCost(text, model string, maxTokens int) float64 {
	resolved := model
	if canonical, ok := r.aliases[model]; ok {
		resolved = canonical
	}

	p, ok := r.pricing[resolved]
	if !ok {
		return 0
	}

	if p.Image > 0 {
		return p.Image
	}

	if maxTokens <= 0 {
		maxTokens = defaultMaxTokensForEstimate
	}

	estimatedTokens := len(text) / 4
	inputCost := float64(estimatedTokens) / 1e6 * p.Input
	outputCost := float64(maxTokens) / 1e6 * p.Output

	return inputCost + outputCost
}

// Cost prices a completed request from provider-reported token counts.
// Models missing from the pricing table cost 0.
func (r *Registry) Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := r.pricing[model]
	if !ok {
		return 0
	}

	return float64(inputTokens)/1e6*p.Input + float64(outputTokens)/1e6*p.Output
}

// NativeFileTypes returns the MIME types the model can ingest as raw binary
// files, or nil when it has no native file support. Dated model IDs (e.g.
// "gemini-2.5-pro-latest") match by base-key substring.
func (r *Registry) NativeFileTypes(model string) []string {
	if types, ok := r.nativeFiles[model]; ok {
		return types
	}

	for key, types := range r.nativeFiles {
		if strings.Contains(model, key) {
			return types
		}
	}

	return nil
}

// Capabilities returns the capability tags for a model, or nil if unknown.
func (r *Registry) Capabilities(model string) []string {
	return r.capabilities[model]
}

// Pricing returns the pricing entry for a canonical model name.
// The bool is false for models missing from the table.
func (r *Registry) Pricing(model string) (Pricing, bool) {
	p, ok := r.pricing[model]
	return p, ok
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	cp := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		cp[k] = v
	}

	return cp
}

// CheapestModel returns the cheapest model with the given capability.
func (r *Registry) CheapestModel(capability string) string {
	cheap := map[string]string{
		"text":      "gpt-4.1-nano",
		"image":     "dall-e-2",
		"reasoning": "grok-3-mini",
		"vision":    "claude-3-5-haiku",
	}
	if m, ok := cheap[capability]; ok {
		return m
	}

	return "gpt-4.1-nano"
}

// FastestModel returns the fastest model with the given capability.
func (r *Registry) FastestModel(capability string) string {
	fast := map[string]string{
		"text":      "gpt-5-nano",
		"image":     "dall-e-2",
		"reasoning": "grok-code-fast-1",
		"vision":    "gemini-2.5-flash",
	}
	if m, ok := fast[capability]; ok {
		return m
	}

	return "gpt-5-nano"
}

// BestModel returns the best-quality model with the given capability.
func (r *Registry) BestModel(capability string) string {
	best := map[string]string{
		"text":      "gpt-5",
		"reasoning": "o3-deep-research",
		"image":     "dall-e-3",
		"vision":    "claude-opus-4",
		"code":      "grok-code-fast-1",
		"analysis":  "claude-opus-4",
	}
	if m, ok := best[capability]; ok {
		return m
	}

	return "gpt-5"
}
