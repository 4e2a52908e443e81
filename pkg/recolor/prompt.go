package recolor

import (
	"fmt"
	"strings"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

const (
	maskedPreserveClause   = "preserve fabric texture, wrinkles, seams, shadows; do not alter logos or text"
	masklessPreserveClause = "keep exact design composition, fabric texture, wrinkles, seams, highlights, shadows; do not alter logos, text, or background"
)

// regionPhrases はマスクなし編集で各領域を自然言語で指す表現です。
var regionPhrases = map[domain.Region]string{
	domain.RegionBody:    "main body",
	domain.RegionSleeves: "sleeves/accents",
	domain.RegionTrims:   "trims/borders",
}

// MaskedPrompt はマスク付き編集1回分の指示文を組み立てます。
func MaskedPrompt(color string) string {
	return fmt.Sprintf("recolor only the marked pixels of the mask to %s; %s", color, maskedPreserveClause)
}

// MasklessPrompt はパレットの全色を1文にまとめた指示文を組み立てます。
// 未指定の色の節は含めません。
func MasklessPrompt(palette domain.ColorPalette) string {
	clauses := make([]string, 0, len(domain.Regions))
	for _, r := range domain.Regions {
		if c := palette.ColorFor(r); c != "" {
			clauses = append(clauses, fmt.Sprintf("%s to %s", regionPhrases[r], c))
		}
	}
	return fmt.Sprintf("recolor the garment: %s; %s.", strings.Join(clauses, ", "), masklessPreserveClause)
}
