package imagesvc_test

import (
	"bytes"
	"context"
	"image/jpeg"
	"math"
	"testing"

	"github.com/jmertens/storefront-media/internal/domain"

	. "github.com/jmertens/storefront-media/internal/svc/imagesvc"
)

func abs(value int) int {
	if value < 0 {
		return -value
	}

	return value
}

func testCompressionPolicy() CompressionPolicy {
	return CompressionPolicy{
		MaxWidth:       100,
		MaxHeight:      100,
		TargetBytes:    1 << 20,
		InitialQuality: 85,
		QualityFloor:   20,
		QualityStep:    10,
		Interpolator:   "catmullrom",
	}
}

func TestCompressor_Compress_Resize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "downscales landscape to fit box",
			width:      300,
			height:     200,
			wantWidth:  100,
			wantHeight: 66,
		},
		{
			name:       "downscales portrait to fit box",
			width:      200,
			height:     400,
			wantWidth:  50,
			wantHeight: 100,
		},
		{
			name:       "never upscales small images",
			width:      50,
			height:     40,
			wantWidth:  50,
			wantHeight: 40,
		},
		{
			name:       "keeps images exactly at the box bounds",
			width:      100,
			height:     100,
			wantWidth:  100,
			wantHeight: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			compressor := NewCompressor(testCompressionPolicy())

			data := encodeJPEG(t, makeTestImage(tt.width, tt.height), 90)
			info := domain.ImageInfo{MIMEType: MIMETypeJPEG, Width: tt.width, Height: tt.height}

			result := compressor.Compress(context.TODO(), data, info)

			if result.MIMEType != MIMETypeJPEG {
				t.Errorf("MIMEType = %q, want %q", result.MIMEType, MIMETypeJPEG)
			}

			if result.Width > 100 || result.Height > 100 {
				t.Errorf("dimensions = %dx%d exceed the 100x100 box", result.Width, result.Height)
			}

			// Scaling truncates, so allow one pixel of slack per axis.
			if abs(result.Width-tt.wantWidth) > 1 || abs(result.Height-tt.wantHeight) > 1 {
				t.Errorf("dimensions = %dx%d, want %dx%d within one pixel",
					result.Width, result.Height, tt.wantWidth, tt.wantHeight)
			}

			config, err := jpeg.DecodeConfig(bytes.NewReader(result.Data))
			if err != nil {
				t.Fatalf("output is not a decodable jpeg: %v", err)
			}

			if config.Width != result.Width || config.Height != result.Height {
				t.Errorf("encoded dimensions = %dx%d, reported %dx%d",
					config.Width, config.Height, result.Width, result.Height)
			}

			wantRatio := float64(tt.width) / float64(tt.height)
			gotRatio := float64(result.Width) / float64(result.Height)

			if math.Abs(wantRatio-gotRatio) > 0.05 {
				t.Errorf("aspect ratio = %.3f, want %.3f within rounding", gotRatio, wantRatio)
			}
		})
	}
}

func TestCompressor_Compress_NormalizesPNGToJPEG(t *testing.T) {
	t.Parallel()

	compressor := NewCompressor(testCompressionPolicy())

	data := encodePNG(t, makeTestImage(300, 200))
	info := domain.ImageInfo{MIMEType: MIMETypePNG, Width: 300, Height: 200}

	result := compressor.Compress(context.TODO(), data, info)

	if result.MIMEType != MIMETypeJPEG {
		t.Errorf("MIMEType = %q, want %q", result.MIMEType, MIMETypeJPEG)
	}

	if _, err := jpeg.DecodeConfig(bytes.NewReader(result.Data)); err != nil {
		t.Fatalf("output is not a decodable jpeg: %v", err)
	}
}

func TestCompressor_Compress_QualityBudget(t *testing.T) {
	t.Parallel()

	t.Run("keeps initial quality when budget is generous", func(t *testing.T) {
		t.Parallel()

		policy := testCompressionPolicy()
		compressor := NewCompressor(policy)

		data := encodeJPEG(t, makeTestImage(80, 80), 90)
		info := domain.ImageInfo{MIMEType: MIMETypeJPEG, Width: 80, Height: 80}

		result := compressor.Compress(context.TODO(), data, info)

		if result.Quality != policy.InitialQuality {
			t.Errorf("Quality = %d, want %d", result.Quality, policy.InitialQuality)
		}

		if result.Size() > int64(policy.TargetBytes) {
			t.Errorf("Size() = %d, want <= %d", result.Size(), policy.TargetBytes)
		}
	})

	t.Run("steps quality down toward the floor on a tiny budget", func(t *testing.T) {
		t.Parallel()

		policy := testCompressionPolicy()
		policy.TargetBytes = 64

		compressor := NewCompressor(policy)

		data := encodeJPEG(t, makeTestImage(100, 100), 90)
		info := domain.ImageInfo{MIMEType: MIMETypeJPEG, Width: 100, Height: 100}

		result := compressor.Compress(context.TODO(), data, info)

		// No 100x100 noise image encodes into 64 bytes, so the loop must
		// terminate at its lowest reachable quality instead of spinning.
		if result.Quality < policy.QualityFloor || result.Quality >= policy.QualityFloor+policy.QualityStep {
			t.Errorf("Quality = %d, want within [%d, %d)",
				result.Quality, policy.QualityFloor, policy.QualityFloor+policy.QualityStep)
		}

		if _, err := jpeg.DecodeConfig(bytes.NewReader(result.Data)); err != nil {
			t.Fatalf("output is not a decodable jpeg: %v", err)
		}
	})
}

func TestCompressor_Compress_PassthroughOnError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  func(CompressionPolicy) CompressionPolicy
		data []byte
		info domain.ImageInfo
	}{
		{
			name: "undecodable data passes through unchanged",
			cfg:  func(cfg CompressionPolicy) CompressionPolicy { return cfg },
			data: []byte("\xff\xd8\xffgarbage that is not a jpeg"),
			info: domain.ImageInfo{MIMEType: MIMETypeJPEG, Width: 20, Height: 20},
		},
		{
			name: "unknown interpolator passes through unchanged",
			cfg: func(cfg CompressionPolicy) CompressionPolicy {
				cfg.Interpolator = "lanczos"

				return cfg
			},
			data: nil, // filled in below
			info: domain.ImageInfo{MIMEType: MIMETypeJPEG, Width: 300, Height: 200},
		},
	}

	tests[1].data = encodeJPEG(t, makeTestImage(300, 200), 90)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			compressor := NewCompressor(tt.cfg(testCompressionPolicy()))

			result := compressor.Compress(context.TODO(), tt.data, tt.info)

			if !bytes.Equal(result.Data, tt.data) {
				t.Error("passthrough modified the original bytes")
			}

			if result.MIMEType != tt.info.MIMEType {
				t.Errorf("MIMEType = %q, want %q", result.MIMEType, tt.info.MIMEType)
			}

			if result.Width != tt.info.Width || result.Height != tt.info.Height {
				t.Errorf("dimensions = %dx%d, want %dx%d",
					result.Width, result.Height, tt.info.Width, tt.info.Height)
			}
		})
	}
}
