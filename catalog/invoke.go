package catalog

import (
	"context"

	"github.com/BaSui01/genflow/flow"
)

// GenerateMetaTagsFor runs generateMetaTags.
func GenerateMetaTagsFor(ctx context.Context, inv flow.Invoker, in MetaTagInput) (*MetaTagOutput, error) {
	return flow.Run[MetaTagInput, MetaTagOutput](ctx, inv, GenerateMetaTags, in)
}

// RemoveBackgroundFrom runs removeBackground.
func RemoveBackgroundFrom(ctx context.Context, inv flow.Invoker, in BackgroundRemoverInput) (*BackgroundRemoverOutput, error) {
	return flow.Run[BackgroundRemoverInput, BackgroundRemoverOutput](ctx, inv, RemoveBackground, in)
}

// ResearchKeywordsFor runs keywordResearch.
func ResearchKeywordsFor(ctx context.Context, inv flow.Invoker, in KeywordResearchInput) (*KeywordResearchOutput, error) {
	return flow.Run[KeywordResearchInput, KeywordResearchOutput](ctx, inv, ResearchKeywords, in)
}

// CheckPlagiarismOf runs checkPlagiarism.
func CheckPlagiarismOf(ctx context.Context, inv flow.Invoker, in PlagiarismInput) (*PlagiarismOutput, error) {
	return flow.Run[PlagiarismInput, PlagiarismOutput](ctx, inv, CheckPlagiarism, in)
}

// CheckBacklinksOf runs checkBacklinks.
func CheckBacklinksOf(ctx context.Context, inv flow.Invoker, in BacklinkInput) (*BacklinkOutput, error) {
	return flow.Run[BacklinkInput, BacklinkOutput](ctx, inv, CheckBacklinks, in)
}
