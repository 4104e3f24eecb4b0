package suggest

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// SimpleTestPrompt checks whether a model can see images at all.
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks a vision model for the dominant subject as JSON.
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner of the box.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most central salient object).
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"centered generic scene",
    "tags":["generic","center","subject","photo","scene"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// analysis is the JSON a model answers DefaultPrompt with.
type analysis struct {
	Primary     primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

type box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func fallbackAnalysis(label, description string, tags ...string) *analysis {
	return &analysis{
		Primary: primary{
			Label:      label,
			Confidence: 0.1,
			Box:        box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        tags,
	}
}

// parseAnalysis reads a model answer. Answers that are not JSON produce a
// low confidence fallback rather than an error.
func parseAnalysis(raw string) *analysis {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return fallbackAnalysis("unclear image", "Model returned non-JSON response", "unclear", "non-json", "fallback")
	}

	var result analysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallbackAnalysis("parse error", "Failed to parse model response", "parse-error", "fallback")
	}

	if result.Primary.Label == "" && result.Primary.Confidence == 0 {
		if result.Primary.Box.W == 0 && result.Primary.Box.H == 0 {
			result.Primary.Box = box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
		}
	}
	return &result
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments and trailing commas from a
// model answer and keeps the outermost {...}.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

var fallbackIndicators = []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}

// suggestion validates a parsed answer and converts it. Fallback answers
// are marked as "none".
func (a *analysis) suggestion() *Suggestion {
	s := &Suggestion{
		Label:       a.Primary.Label,
		Confidence:  clamp(a.Primary.Confidence, 0, 1),
		Description: a.Description,
		Tags:        normalizeTags(a.Tags),
	}

	label := strings.ToLower(s.Label)
	desc := strings.ToLower(s.Description)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) || strings.Contains(desc, indicator) {
			s.Label = "none"
			s.Confidence = 0
			break
		}
	}

	s.Box = a.Primary.Box.rect()
	if s.Box.IsEmpty() {
		s.Box = fallbackBox
	}
	return s
}

// rect converts b to a rectangle clamped to the unit square.
func (b box) rect() geom.Rect {
	if math.IsNaN(b.X + b.Y + b.W + b.H) {
		return geom.Rect{}
	}
	return geom.Rect{
		Left:   clamp(b.X, 0, 1),
		Top:    clamp(b.Y, 0, 1),
		Right:  clamp(b.X+b.W, 0, 1),
		Bottom: clamp(b.Y+b.H, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeTags lowercases, trims and dedupes tags, keeping at most 5.
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
