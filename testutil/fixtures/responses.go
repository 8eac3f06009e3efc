// =============================================================================
// 📦 测试数据工厂 - 后端响应测试数据
// =============================================================================
// 提供五个流程的预置后端输出与输入样例，用于测试
// =============================================================================
package fixtures

import (
	"encoding/base64"

	"github.com/BaSui01/genflow/llm"
)

// =============================================================================
// 🎯 后端文本输出
// =============================================================================

// MetaTagsJSON 是 generateMetaTags 的合法输出
const MetaTagsJSON = `{"title":"Handmade Ceramic Mugs | Clay & Co","description":"Browse small-batch ceramic mugs thrown by hand in our Portland studio.","keywords":"ceramic mugs, handmade pottery, coffee mugs"}`

// KeywordsJSON 是 keywordResearch 的合法输出
const KeywordsJSON = `{"keywords":[{"keyword":"sourdough starter","volume":"High","difficulty":"Medium"},{"keyword":"sourdough discard recipes","volume":"Medium","difficulty":"Low"}]}`

// BreakfastKeywordsJSON 只含一个关键词的 keywordResearch 输出
const BreakfastKeywordsJSON = `{"keywords":[{"keyword":"high protein breakfast","volume":"1K - 10K","difficulty":"Medium"}]}`

// PlagiarismJSON 是 checkPlagiarism 的合法输出
const PlagiarismJSON = `{"uniquenessScore":87.5,"matches":[{"text":"the quick brown fox","source":"https://example.com/fox","similarity":92}]}`

// BacklinksJSON 是 checkBacklinks 的合法输出
const BacklinksJSON = `{"domainAuthority":54,"totalBacklinks":1200,"referringDomains":310,"backlinks":[{"sourceUrl":"https://blog.example.org/post","anchorText":"great tools","domainAuthority":61}]}`

// BacklinksMissingAuthorityJSON 缺少必填字段 domainAuthority
const BacklinksMissingAuthorityJSON = `{"totalBacklinks":1200,"referringDomains":310,"backlinks":[]}`

// Fenced 把 JSON 包进 markdown 代码块
func Fenced(body string) string {
	return "Here is the result:\n```json\n" + body + "\n```"
}

// =============================================================================
// 🖼️ 媒体样例
// =============================================================================

// pngPixel 是 1x1 透明 PNG
const pngPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// PNG 返回 1x1 PNG 的字节
func PNG() []byte {
	data, err := base64.StdEncoding.DecodeString(pngPixel)
	if err != nil {
		panic(err)
	}
	return data
}

// PNGDataURI 返回 1x1 PNG 的 data URI
func PNGDataURI() string {
	return "data:image/png;base64," + pngPixel
}

// ImageResponse 返回只携带一张 PNG 的后端响应
func ImageResponse() *llm.Response {
	return &llm.Response{
		Media:    []llm.Media{{MIMEType: "image/png", Data: PNG()}},
		Provider: "mock",
	}
}

// =============================================================================
// ✍️ 输入样例
// =============================================================================

// WebsiteContent 是满足 generateMetaTags 长度下限的页面内容
const WebsiteContent = "Clay & Co is a small pottery studio in Portland making handmade ceramic mugs, bowls and planters."

// PlagiarismText 是满足 checkPlagiarism 长度下限的文本
const PlagiarismText = "The quick brown fox jumps over the lazy dog while the farmer watches from the porch."
