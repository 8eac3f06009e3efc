package catalog

import (
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
)

// Flow names.
const (
	GenerateMetaTags = "generateMetaTags"
	RemoveBackground = "removeBackground"
	ResearchKeywords = "keywordResearch"
	CheckPlagiarism  = "checkPlagiarism"
	CheckBacklinks   = "checkBacklinks"
)

const metaTagPrompt = `You are an expert SEO specialist.
Based on the provided keywords and website content, generate optimized meta tags for the website.

Keywords: {{{keywords}}}
Website Content: {{{websiteContent}}}

Instructions:
1. Analyze the keywords and website content to understand the main topics and themes.
2. Generate a compelling and concise meta title that includes relevant keywords.
3. Create a meta description that accurately summarizes the website content and entices users to click.
4. Generate a list of relevant meta keywords, including the primary keywords and related terms.
5. Respond in JSON format.`

const keywordResearchPrompt = `You are an expert SEO strategist specializing in keyword research.
Based on the provided topic, generate a list of related keywords. For each keyword, provide an estimated monthly search volume and an SEO difficulty score.

Topic: {{{topic}}}

Instructions:
1. Brainstorm a list of at least 15 relevant long-tail keywords, LSI keywords, and questions related to the topic.
2. For each keyword, estimate a realistic monthly search volume (e.g., "100", "1K - 10K", "100K+").
3. For each keyword, estimate the SEO difficulty on a scale of "Low", "Medium", "High", or "Very High".
4. Return the list of keywords with their volume and difficulty.
5. Respond in JSON format.`

const plagiarismPrompt = `You are a sophisticated plagiarism detection engine. Analyze the provided text for uniqueness.

Text to analyze:
{{{text}}}

Instructions:
1. Scour the web for content that matches the provided text.
2. Calculate a "uniquenessScore" from 0 (completely plagiarized) to 100 (completely unique).
3. Identify specific sentences or paragraphs that seem to be copied from other sources.
4. For each identified match, provide the text snippet, a plausible source URL, and a similarity percentage.
5. If no matches are found, return an empty "matches" array and a uniquenessScore between 95 and 100.
6. Your web search is simulated, but provide realistic-looking URLs for any matches you create.
7. Respond in JSON format.`

const backlinkPrompt = `You are a powerful SEO backlink analysis tool. For the given domain, provide a simulated backlink profile.

Domain to analyze: {{{domain}}}

Instructions:
1. Generate a realistic-looking but entirely simulated backlink profile for the domain.
2. Create a plausible "domainAuthority" score between 1 and 100.
3. Generate a plausible "totalBacklinks" count and a "referringDomains" count.
4. Generate a list of exactly 10 simulated backlinks.
5. For each backlink, provide a realistic-looking source URL (which must be a full URL starting with https://), anchor text, and the referring domain's authority score.
6. The data must be plausible but entirely simulated. Do not perform a real web search.
7. Respond in JSON format. Do not add any extra text or explanations.`

// MetaTags declares generateMetaTags.
func MetaTags() flow.Definition {
	return flow.MustDefine[MetaTagInput, MetaTagOutput](GenerateMetaTags,
		"Generates an SEO meta title, description and keywords for a page.", metaTagPrompt)
}

// KeywordResearch declares keywordResearch.
func KeywordResearch() flow.Definition {
	return flow.MustDefine[KeywordResearchInput, KeywordResearchOutput](ResearchKeywords,
		"Suggests related keywords with estimated search volume and difficulty.", keywordResearchPrompt)
}

// Plagiarism declares checkPlagiarism.
func Plagiarism() flow.Definition {
	return flow.MustDefine[PlagiarismInput, PlagiarismOutput](CheckPlagiarism,
		"Estimates how unique a text is and lists likely sources.", plagiarismPrompt)
}

// Backlinks declares checkBacklinks.
func Backlinks() flow.Definition {
	return flow.MustDefine[BacklinkInput, BacklinkOutput](CheckBacklinks,
		"Produces a simulated backlink profile for a domain.", backlinkPrompt)
}

// BackgroundRemoval declares removeBackground.
func BackgroundRemoval() flow.Definition {
	return flow.Definition{
		Name:        RemoveBackground,
		Description: "Removes the background of a photo and returns a PNG with transparency.",
		InputSchema: schema.NewObjectSchema().
			AddRequiredProperty("photoDataUri", schema.NewStringSchema().
				WithFormat(schema.FormatDataURI).
				WithPattern(photoPattern).
				WithDescription("A photo of an object or person, as a data URI that must include a MIME type and use Base64 encoding. Expected format: 'data:<mimetype>;base64,<encoded_data>'.").
				WithErrorMessage("Please upload a JPEG, PNG or WEBP image.")),
		OutputSchema: schema.NewObjectSchema().
			AddRequiredProperty("processedPhotoDataUri", schema.NewStringSchema().
				WithFormat(schema.FormatDataURI).
				WithDescription("The processed photo with the background removed, as a PNG data URI.")),
		Render: renderBackgroundRemoval,
		Config: llm.GenerationConfig{
			ResponseModalities: []llm.Modality{llm.ModalityText, llm.ModalityImage},
			SafetySettings:     llm.AllowAll(),
		},
		RequireMedia:    true,
		OutputFromMedia: processedPhoto,
	}
}

// Definitions returns every built-in flow.
func Definitions() []flow.Definition {
	return []flow.Definition{
		MetaTags(),
		BackgroundRemoval(),
		KeywordResearch(),
		Plagiarism(),
		Backlinks(),
	}
}

// NewRegistry registers every built-in flow and seals the registry.
// It panics on a definition defect.
func NewRegistry() *flow.Registry {
	return flow.NewRegistry().MustRegister(Definitions()...).Seal()
}

// Register adds the built-in flows to reg without sealing it.
func Register(reg *flow.Registry) error {
	for _, d := range Definitions() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
