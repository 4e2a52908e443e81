package recolor

import (
	"github.com/shouni/gemini-recolor-kit/pkg/domain"
)

// Branch は Recolor が選択した処理経路の名前です。
type Branch string

const (
	BranchMaskDriven Branch = "mask-driven"
	BranchMaskless   Branch = "maskless"
)

// PlannedEdit は1回分の編集呼び出しです。マスクなし経路では Region は空です。
type PlannedEdit struct {
	Region domain.Region
	Prompt string
}

// Plan は Recolor が実行する編集呼び出しの一覧です。
type Plan struct {
	Branch Branch
	Edits  []PlannedEdit
	// Skipped はマスクと色の一方しかないため編集されない領域です。
	Skipped []domain.Region
}

// strategy は処理経路の直和型です。maskDriven か maskless のどちらかになります。
type strategy interface {
	plan(palette domain.ColorPalette) Plan
}

type maskDriven struct {
	masks domain.MaskSet
}

type maskless struct{}

// selectStrategy は既知の領域に1つでもマスクがあれば maskDriven を選びます。
// 色と対になるマスクが1つもなくても maskDriven のままです。
func selectStrategy(masks domain.MaskSet) strategy {
	if masks.Populated() {
		return maskDriven{masks: masks}
	}
	return maskless{}
}

func (s maskDriven) plan(palette domain.ColorPalette) Plan {
	p := Plan{Branch: BranchMaskDriven}
	for _, r := range domain.Regions {
		color := palette.ColorFor(r)
		hasMask := s.masks.Has(r)
		switch {
		case hasMask && color != "":
			p.Edits = append(p.Edits, PlannedEdit{Region: r, Prompt: MaskedPrompt(color)})
		case hasMask || color != "":
			p.Skipped = append(p.Skipped, r)
		}
	}
	return p
}

func (maskless) plan(palette domain.ColorPalette) Plan {
	return Plan{
		Branch: BranchMaskless,
		Edits:  []PlannedEdit{{Prompt: MasklessPrompt(palette)}},
	}
}

// Preview は通信を行わずに、Recolor が選ぶ経路と送信するプロンプトを返します。
func Preview(palette domain.ColorPalette, masks domain.MaskSet) Plan {
	return selectStrategy(masks).plan(palette)
}
