package suggest

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// SaliencyConfig tunes the offline detector.
type SaliencyConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	// MaxDim is the longest side the image is reduced to before analysis.
	MaxDim int
	// MaxRegions caps how many windows are merged into the subject box.
	MaxRegions int
	// KeepRatio keeps windows scoring at least this fraction of the best one.
	KeepRatio float64
}

// DefaultSaliencyConfig returns the detector defaults.
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxDim:          256,
		MaxRegions:      10,
		KeepRatio:       0.8,
	}
}

// Saliency finds the subject from edges and brightness, without a model.
type Saliency struct {
	config SaliencyConfig
}

// NewSaliency creates the offline detector.
func NewSaliency(config SaliencyConfig) *Saliency {
	return &Saliency{config: config}
}

// Region is a scored window, in pixels of the analysed image.
type Region struct {
	X, Y, Width, Height int
	Score               float64
}

func (r Region) Area() int { return r.Width * r.Height }

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Suggest returns the union of the best scoring windows.
func (d *Saliency) Suggest(ctx context.Context, img image.Image) (*Suggestion, error) {
	small := imaging.Fit(img, d.config.MaxDim, d.config.MaxDim, imaging.Box)
	regions, err := d.DetectSubjects(ctx, small)
	if err != nil {
		return nil, err
	}

	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if len(regions) == 0 || w == 0 || h == 0 {
		return &Suggestion{Label: "none", Box: fallbackBox}, nil
	}

	best := regions[0].Score
	union := regions[0].rect()
	for _, r := range regions[1:] {
		if r.Score < best*d.config.KeepRatio {
			break
		}
		union = union.Union(r.rect())
	}

	maxScore := d.config.ContrastWeight + d.config.ColorWeight
	conf := 0.0
	if maxScore > 0 {
		conf = clamp(best/maxScore, 0, 1)
	}
	return &Suggestion{
		Label:      "salient region",
		Confidence: conf,
		Box: geom.Rect{
			Left:   float64(union.Min.X) / float64(w),
			Top:    float64(union.Min.Y) / float64(h),
			Right:  float64(union.Max.X) / float64(w),
			Bottom: float64(union.Max.Y) / float64(h),
		},
	}, nil
}

// DetectSubjects returns the windows of img worth keeping, best first.
func (d *Saliency) DetectSubjects(ctx context.Context, img *image.NRGBA) ([]Region, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sal := d.saliencyMap(img)

	regions, err := d.findImportantRegions(ctx, sal, w, h)
	if err != nil {
		return nil, err
	}
	regions = d.filterAndScoreRegions(regions, w, h)
	if n := d.config.MaxRegions; n > 0 && len(regions) > n {
		regions = regions[:n]
	}
	return regions, nil
}

var neighbors = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// saliencyMap combines local colour difference with brightness, per pixel.
func (d *Saliency) saliencyMap(img *image.NRGBA) [][]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sal := make([][]float64, h)
	for i := range sal {
		sal[i] = make([]float64, w)
	}

	px := func(x, y int) (float64, float64, float64) {
		i := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			r1, g1, b1 := px(x, y)
			var edge float64
			for _, o := range neighbors {
				r2, g2, b2 := px(x+o[0], y+o[1])
				dr, dg, db := r1-r2, g1-g2, b1-b2
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8 * 255
			brightness := (r1 + g1 + b1) / (3 * 255)
			sal[y][x] = d.config.ContrastWeight*edge + d.config.ColorWeight*brightness
		}
	}
	return sal
}

// findImportantRegions slides square windows of several sizes over the map.
func (d *Saliency) findImportantRegions(ctx context.Context, sal [][]float64, w, h int) ([]Region, error) {
	var regions []Region
	side := min(w, h)
	for _, size := range []int{side / 20, side / 16, side / 12, side / 8, side / 4} {
		if size < 10 {
			continue
		}
		step := max(1, size/8)
		for y := 0; y <= h-size; y += step {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for x := 0; x <= w-size; x += step {
				score := regionScore(sal, x, y, size, size)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}
	return regions, nil
}

func regionScore(sal [][]float64, x, y, w, h int) float64 {
	var total float64
	count := 0
	for ry := y; ry < y+h && ry < len(sal); ry++ {
		for rx := x; rx < x+w && rx < len(sal[ry]); rx++ {
			total += sal[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// filterAndScoreRegions drops windows smaller than MinSubjectRatio of the
// image and sorts the rest by score.
func (d *Saliency) filterAndScoreRegions(regions []Region, w, h int) []Region {
	minArea := int(float64(w*h) * d.config.MinSubjectRatio)
	filtered := regions[:0]
	for _, r := range regions {
		if r.Area() >= minArea {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}
