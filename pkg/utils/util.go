package utils

import "math"

// SeedToPtrInt32 は *int64 のシード値を Gemini SDK 用の *int32 に変換します。
// int32 の範囲外の値は範囲内に丸めます。
func SeedToPtrInt32(seed *int64) *int32 {
	if seed == nil {
		return nil
	}
	v := *seed
	switch {
	case v > math.MaxInt32:
		v = math.MaxInt32
	case v < math.MinInt32:
		v = math.MinInt32
	}
	out := int32(v)
	return &out
}
