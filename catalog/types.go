package catalog

// MetaTagInput is the input of generateMetaTags.
type MetaTagInput struct {
	Keywords       string `json:"keywords" jsonschema:"required,minLength=3,description=The primary keywords related to the website content.,errorMessage=Please enter at least one keyword."`
	WebsiteContent string `json:"websiteContent" jsonschema:"required,minLength=50,description=The content of the website to be analyzed.,errorMessage=Please provide at least 50 characters of website content."`
}

// MetaTagOutput is the output of generateMetaTags.
type MetaTagOutput struct {
	Title       string `json:"title" jsonschema:"required,description=The generated meta title for the website."`
	Description string `json:"description" jsonschema:"required,description=The generated meta description for the website."`
	Keywords    string `json:"keywords" jsonschema:"required,description=The generated meta keywords for the website."`
}

// BackgroundRemoverInput is the input of removeBackground.
type BackgroundRemoverInput struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// BackgroundRemoverOutput is the output of removeBackground.
type BackgroundRemoverOutput struct {
	ProcessedPhotoDataURI string `json:"processedPhotoDataUri"`
}

// KeywordResearchInput is the input of keywordResearch.
type KeywordResearchInput struct {
	Topic string `json:"topic" jsonschema:"required,minLength=3,description=The main topic or seed keyword for research.,errorMessage=Please enter a topic with at least 3 characters."`
}

// KeywordSuggestion is one researched keyword.
type KeywordSuggestion struct {
	Keyword    string `json:"keyword" jsonschema:"required,description=The suggested keyword."`
	Volume     string `json:"volume" jsonschema:"required,description=An estimated monthly search volume such as 1K - 10K or 100K+."`
	Difficulty string `json:"difficulty" jsonschema:"required,description=An estimated SEO difficulty: Low or Medium or High or Very High."`
}

// KeywordResearchOutput is the output of keywordResearch.
type KeywordResearchOutput struct {
	Keywords []KeywordSuggestion `json:"keywords" jsonschema:"required,description=Keyword suggestions with their estimated volume and difficulty."`
}

// PlagiarismInput is the input of checkPlagiarism.
type PlagiarismInput struct {
	Text string `json:"text" jsonschema:"required,minLength=50,maxLength=5000,description=The text content to check for plagiarism.,errorMessage=Please enter between 50 and 5000 characters to check."`
}

// PlagiarismMatch is a passage that resembles a source.
type PlagiarismMatch struct {
	Text       string  `json:"text" jsonschema:"required,description=The snippet of text that was matched."`
	Source     string  `json:"source" jsonschema:"required,format=url,description=The URL of the potential source."`
	Similarity float64 `json:"similarity" jsonschema:"required,minimum=0,maximum=100,description=The similarity percentage of the snippet to the source."`
}

// PlagiarismOutput is the output of checkPlagiarism.
type PlagiarismOutput struct {
	UniquenessScore float64           `json:"uniquenessScore" jsonschema:"required,minimum=0,maximum=100,description=A score from 0 to 100 representing the uniqueness of the text."`
	Matches         []PlagiarismMatch `json:"matches" jsonschema:"required,description=Potential sources that match parts of the text."`
}

// BacklinkInput is the input of checkBacklinks.
type BacklinkInput struct {
	Domain string `json:"domain" jsonschema:"required,minLength=3,pattern=^[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}$,description=The domain name to check for backlinks (e.g. example.com).,errorMessage=Please enter a valid domain name (e.g. example.com)"`
}

// Backlink is one simulated inbound link.
type Backlink struct {
	SourceURL       string  `json:"sourceUrl" jsonschema:"required,format=url,description=The full https URL of the page where the backlink was found."`
	AnchorText      string  `json:"anchorText" jsonschema:"required,description=The anchor text of the backlink."`
	DomainAuthority float64 `json:"domainAuthority" jsonschema:"required,minimum=0,maximum=100,description=The estimated Domain Authority of the referring domain."`
}

// BacklinkOutput is the output of checkBacklinks.
type BacklinkOutput struct {
	DomainAuthority  float64    `json:"domainAuthority" jsonschema:"required,minimum=0,maximum=100,description=An estimated Domain Authority score from 0 to 100."`
	TotalBacklinks   float64    `json:"totalBacklinks" jsonschema:"required,minimum=0,description=The estimated total number of backlinks found."`
	ReferringDomains float64    `json:"referringDomains" jsonschema:"required,minimum=0,description=The estimated number of unique referring domains."`
	Backlinks        []Backlink `json:"backlinks" jsonschema:"required,description=A list of the top 10 backlinks found."`
}
