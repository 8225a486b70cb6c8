package render

import "strings"

type taglineRule struct {
	keywords []string
	text     string
}

// First matching rule wins.
var taglineRules = []taglineRule{
	{[]string{"WHISKY", "WHISKEY"}, "A curated journey through the world's finest distilleries."},
	{[]string{"VODKA", "SPIRIT", "RUM", "GIN"}, "Pure, distinct, and crafted for the bold."},
	{[]string{"BEER", "BREW"}, "Crisp, refreshing, and perfectly poured."},
	{[]string{"APPETIZER", "STARTER", "SNACK"}, "Small plates, bold flavors - the perfect beginning."},
	{[]string{"MAIN", "COURSE"}, "Hearty, soulful dishes crafted with passion."},
	{[]string{"REFRESH", "BEVERAGE"}, "Cool, crisp, and revitalizing."},
	{[]string{"PREMIUM", "RESERVE"}, "Exclusive pours for the distinguished palate."},
	{[]string{"SIDE", "DESSERT"}, "The perfect companions to your meal."},
}

const defaultTagline = "Experience the taste of excellence."

// Tagline picks the short line printed under a page title.
func Tagline(title string) string {
	t := strings.ToUpper(title)
	for _, rule := range taglineRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.text
			}
		}
	}
	return defaultTagline
}

type Diet int

const (
	DietNone Diet = iota
	DietVeg
	DietNonVeg
)

func (d Diet) String() string {
	switch d {
	case DietVeg:
		return "veg"
	case DietNonVeg:
		return "non-veg"
	default:
		return ""
	}
}

// Colour of the dietary mark, following the usual Indian menu convention.
func (d Diet) color() string {
	if d == DietVeg {
		return "#22c55e"
	}
	return "#ef4444"
}

func dietOf(title string) Diet {
	t := strings.ToUpper(title)
	switch {
	case strings.Contains(t, "NON-VEG"), strings.Contains(t, "MEAT"), strings.Contains(t, "CHICKEN"):
		return DietNonVeg
	case strings.Contains(t, "VEG") && !strings.Contains(t, "NON"):
		return DietVeg
	default:
		return DietNone
	}
}

// DietFor looks at the category title first and falls back to the title of
// the section the category belongs to.
func DietFor(categoryTitle, sectionTitle string) Diet {
	if d := dietOf(categoryTitle); d != DietNone {
		return d
	}
	return dietOf(sectionTitle)
}

// Glyph names the small mark drawn before a category title.
func Glyph(title string) string {
	t := strings.ToUpper(title)
	has := func(kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(t, kw) {
				return true
			}
		}
		return false
	}
	switch {
	case has("WINE", "SANG", "CHAMP"):
		return "wine"
	case has("BEER", "BREW", "DRAUGHT", "PINT"):
		return "beer"
	case has("APPETIZER", "STARTER", "SNACK"):
		return "fork"
	case has("MAIN", "COURSE", "CURRY", "RICE"):
		return "bowl"
	default:
		return "spark"
	}
}

// glyph draws the named mark inside the s×s box at (x, y).
func (c *Canvas) glyph(name string, x, y, s, u float64) {
	w := 1.2 * u
	mid := x + s/2
	switch name {
	case "wine":
		c.rect(x+s*0.2, y, s*0.6, s*0.45, "", c.Accent, w)
		c.line(mid, y+s*0.45, mid, y+s*0.9, c.Accent, w)
		c.line(x+s*0.25, y+s, x+s*0.75, y+s, c.Accent, w)
	case "beer":
		c.rect(x+s*0.1, y+s*0.15, s*0.55, s*0.85, "", c.Accent, w)
		c.rect(x+s*0.65, y+s*0.35, s*0.25, s*0.4, "", c.Accent, w)
		c.line(x+s*0.1, y+s*0.35, x+s*0.65, y+s*0.35, c.Accent, w)
	case "fork":
		for _, dx := range []float64{0.25, 0.5, 0.75} {
			c.line(x+s*dx, y, x+s*dx, y+s*0.4, c.Accent, w)
		}
		c.line(x+s*0.25, y+s*0.4, x+s*0.75, y+s*0.4, c.Accent, w)
		c.line(mid, y+s*0.4, mid, y+s, c.Accent, w)
	case "bowl":
		c.line(x, y+s*0.4, x+s, y+s*0.4, c.Accent, w)
		c.rect(x+s*0.15, y+s*0.4, s*0.7, s*0.45, c.Accent, "", 0)
		c.line(x+s*0.3, y+s, x+s*0.7, y+s, c.Accent, w)
	default:
		c.line(mid, y, mid, y+s, c.Accent, w)
		c.line(x, y+s/2, x+s, y+s/2, c.Accent, w)
		c.line(x+s*0.2, y+s*0.2, x+s*0.8, y+s*0.8, c.Accent, w)
		c.line(x+s*0.8, y+s*0.2, x+s*0.2, y+s*0.8, c.Accent, w)
	}
}
