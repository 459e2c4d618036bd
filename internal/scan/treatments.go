package scan

import (
	"sort"
	"strings"
)

// Disease classes the prediction model emits
const (
	BacterialLeafBlight = "Bacterial Leaf Blight"
	BrownSpot           = "Brown Spot"
	LeafBlast           = "Leaf Blast"
	LeafScald           = "Leaf Scald"
	NarrowBrownSpot     = "Narrow Brown Spot"
	Tungro              = "Tungro"
	Healthy             = "Healthy"
)

// Treatment is the guidance shown for a diagnosed class
type Treatment struct {
	Disease    string   `json:"disease"`
	Slug       string   `json:"slug"`
	Pathogen   string   `json:"pathogen,omitempty"`
	Severity   string   `json:"severity"`
	Symptoms   []string `json:"symptoms"`
	Management []string `json:"management"`
	Chemicals  []string `json:"chemicals,omitempty"`
}

var treatments = map[string]Treatment{
	slugify(BacterialLeafBlight): {
		Disease:  BacterialLeafBlight,
		Pathogen: "Xanthomonas oryzae pv. oryzae",
		Severity: "high",
		Symptoms: []string{
			"Water-soaked streaks from leaf tips and margins that turn yellow to straw-colored",
			"Milky bacterial ooze on young lesions in the morning",
		},
		Management: []string{
			"Drain the field for a few days and avoid excess nitrogen",
			"Remove infected stubble and volunteer plants after harvest",
			"Plant resistant varieties next season",
		},
		Chemicals: []string{"Copper hydroxide", "Streptomycin sulfate (where registered)"},
	},
	slugify(BrownSpot): {
		Disease:  BrownSpot,
		Pathogen: "Bipolaris oryzae",
		Severity: "medium",
		Symptoms: []string{
			"Oval brown spots with gray centers on leaves",
			"Discolored grains in severe cases",
		},
		Management: []string{
			"Correct soil nutrient deficiency, especially potassium and silicon",
			"Use certified clean seed and hot-water seed treatment",
		},
		Chemicals: []string{"Mancozeb", "Propiconazole"},
	},
	slugify(LeafBlast): {
		Disease:  LeafBlast,
		Pathogen: "Magnaporthe oryzae",
		Severity: "high",
		Symptoms: []string{
			"Diamond-shaped lesions with gray centers and brown borders",
			"Lesions merge and kill whole leaves in humid weather",
		},
		Management: []string{
			"Split nitrogen applications and avoid late heavy doses",
			"Keep the field flooded to reduce drought stress",
			"Scout daily during humid, cloudy periods",
		},
		Chemicals: []string{"Tricyclazole", "Isoprothiolane", "Azoxystrobin"},
	},
	slugify(LeafScald): {
		Disease:  LeafScald,
		Pathogen: "Microdochium oryzae",
		Severity: "medium",
		Symptoms: []string{
			"Zonate lesions starting at leaf tips with alternating light and dark bands",
		},
		Management: []string{
			"Avoid dense planting and excessive nitrogen",
			"Use clean seed",
		},
		Chemicals: []string{"Benomyl", "Mancozeb"},
	},
	slugify(NarrowBrownSpot): {
		Disease:  NarrowBrownSpot,
		Pathogen: "Sphaerulina oryzina",
		Severity: "low",
		Symptoms: []string{
			"Short narrow brown lesions parallel to leaf veins",
		},
		Management: []string{
			"Apply balanced fertilizer with adequate potassium",
			"Plant resistant varieties",
		},
		Chemicals: []string{"Propiconazole"},
	},
	slugify(Tungro): {
		Disease:  Tungro,
		Pathogen: "Rice tungro bacilliform and spherical viruses, spread by green leafhoppers",
		Severity: "high",
		Symptoms: []string{
			"Yellow to orange leaves starting from the tip",
			"Stunted plants with fewer tillers",
		},
		Management: []string{
			"Rogue and destroy infected plants",
			"Control green leafhopper populations early",
			"Synchronize planting with neighboring farms",
		},
		Chemicals: []string{"Imidacloprid (for leafhopper vector)"},
	},
	slugify(Healthy): {
		Disease:  Healthy,
		Severity: "none",
		Symptoms: []string{},
		Management: []string{
			"No disease detected. Continue regular scouting.",
		},
	},
}

func init() {
	for slug, t := range treatments {
		t.Slug = slug
		treatments[slug] = t
	}
}

// LookupTreatment finds guidance by display name or slug
func LookupTreatment(disease string) (*Treatment, bool) {
	t, ok := treatments[slugify(disease)]
	if !ok {
		return nil, false
	}
	return &t, true
}

// Treatments lists every class in display-name order
func Treatments() []Treatment {
	out := make([]Treatment, 0, len(treatments))
	for _, t := range treatments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Disease < out[j].Disease
	})
	return out
}

// slugify maps "Bacterial Leaf Blight", "bacterial_leaf_blight" and
// "bacterial-leaf-blight" to the same key.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
}
