package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"chara-match/internal/domain"
)

// PromptBuilder renders the Traditional Chinese prompts for the two
// generation steps. The wording shapes extraction quality and report
// tone, so treat changes here like API changes.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

const traitExtractionTemplate = `
你是一個嚴謹的二次元理想型特質分析師。
請從以下**理想型描述**中，提取 **8 到 12 個** 最能代表其**核心萌點、性格或行為傾向**的關鍵詞彙。
請注意：
- **只**以 JSON 陣列格式輸出，例如：["傲嬌", "溫柔體貼", "反差萌", "冷靜", "害羞", "長髮", "可靠"]
- 每個詞語請保持簡潔（1 到 3 個詞）。
- **絕對不要**輸出任何額外的文字敘述、解釋或程式碼標記。

理想型描述：
%s
`

// BuildTraitExtraction renders the trait-extraction prompt around the
// user's free-text description.
func (b *PromptBuilder) BuildTraitExtraction(userText string) string {
	return fmt.Sprintf(traitExtractionTemplate, userText)
}

const matchReportTemplate = `
你是一個專業的二次元理想型匹配助理。
根據以下資訊，產生一份**自然語言的最終匹配報告**，幫助使用者找到他們理想型的**二次元化身**。

需要包含：
1. **最符合理想型**的角色（第 1 名），並解釋特質吻合的程度（引用 2–3 個 traits）
2. 再列出 2 個 runner-ups（第 2、3 名），簡短說明他們也接近理想型的原因
3. 風格自然、有趣、充滿 ACG 氛圍。

使用者理想型描述：
%s

提取的理想型核心萌點：
%s

匹配結果（依序，已套用 Min-Max 縮放分數）：
%s

請直接輸出自然語言報告。
`

// BuildMatchReport renders the report prompt. Scores are formatted
// with one decimal so the model narrates the rounded values users see
// in the response.
func (b *PromptBuilder) BuildMatchReport(userText string, traits []string, matches []domain.Match) string {
	traitsJSON, _ := json.Marshal(traits)

	pairs := make([]string, len(matches))
	for i, m := range matches {
		pairs[i] = fmt.Sprintf(`("%s", "%.1f")`, m.Character.Name, m.Result.ScaledScore)
	}
	matchDisplay := "[" + strings.Join(pairs, ", ") + "]"

	return fmt.Sprintf(matchReportTemplate, userText, string(traitsJSON), matchDisplay)
}
