package domain

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Region は衣服の編集対象領域です。
type Region string

const (
	RegionBody    Region = "body"
	RegionSleeves Region = "sleeves"
	RegionTrims   Region = "trims"
)

// Regions は処理および合成の順序です (身頃 → 袖 → トリム)。
// 袖の編集が身頃の上に重なる必要があるため、この順序は変更できません。
var Regions = []Region{RegionBody, RegionSleeves, RegionTrims}

// ParseRegion は文字列から Region を取得します。
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Regions {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown region: %q", s)
}

// ColorPalette は1〜3色の配色指定です。Primary は必須です。
// 各色は外部サービスが解釈できる文字列 (hex または色名) で指定します。
type ColorPalette struct {
	Primary   string `json:"primary" toml:"primary"`
	Secondary string `json:"secondary,omitempty" toml:"secondary"`
	Tertiary  string `json:"tertiary,omitempty" toml:"tertiary"`
}

// ColorFor は領域に対応する色を返します。未指定なら空文字です。
func (p ColorPalette) ColorFor(r Region) string {
	switch r {
	case RegionBody:
		return strings.TrimSpace(p.Primary)
	case RegionSleeves:
		return strings.TrimSpace(p.Secondary)
	case RegionTrims:
		return strings.TrimSpace(p.Tertiary)
	}
	return ""
}

// Validate は Primary の有無と hex 表記の妥当性を確認します。
func (p ColorPalette) Validate() error {
	if strings.TrimSpace(p.Primary) == "" {
		return fmt.Errorf("palette: primary color is required")
	}
	for _, r := range Regions {
		c := p.ColorFor(r)
		if !strings.HasPrefix(c, "#") {
			continue
		}
		if _, err := colorful.Hex(c); err != nil {
			return fmt.Errorf("palette: invalid hex color for %s (%q): %w", r, c, err)
		}
	}
	return nil
}

// MaskSet は領域名からステンシル画像へのマッピングです。
// 不透明または白いピクセルが編集可能な範囲を表します。
type MaskSet map[Region][]byte

// Has は領域に空でないマスクがあるかどうかを返します。
func (m MaskSet) Has(r Region) bool {
	return len(m[r]) > 0
}

// Populated は既知の領域のうち少なくとも1つにマスクがあるかを返します。
func (m MaskSet) Populated() bool {
	for _, r := range Regions {
		if m.Has(r) {
			return true
		}
	}
	return false
}
