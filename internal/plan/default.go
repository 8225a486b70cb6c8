package plan

import "livemenu/internal/models"

func ref(section models.SectionKey, indexes ...int) []CategoryRef {
	refs := make([]CategoryRef, len(indexes))
	for i, idx := range indexes {
		refs[i] = CategoryRef{Section: section, Index: idx}
	}
	return refs
}

func concat(groups ...[]CategoryRef) []CategoryRef {
	var out []CategoryRef
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultEntries is the print layout of the house menu. Some references
// point past the seed data on purpose; they are skipped until filled in.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:        "appetizers-all",
			Title:      "ARTISAN APPETIZERS",
			Variant:    models.VariantCyan,
			Layout:     models.LayoutTwoColumn,
			Categories: ref(models.SectionSnacks, 0, 1),
		},
		{
			Key:        "food-mains",
			Title:      "SIGNATURE MAINS",
			Variant:    models.VariantMagenta,
			Layout:     models.LayoutSingle,
			Categories: ref(models.SectionFood, 0, 1, 2),
		},
		{
			Key:        "veg-bites",
			Title:      "VEGETARIAN & BITES",
			Variant:    models.VariantMagenta,
			Layout:     models.LayoutSingle,
			Annotation: "Good food is the foundation of genuine happiness.",
			Categories: concat(ref(models.SectionFood, 3), ref(models.SectionSides, 1)),
		},
		{
			Key:        "asian-rice",
			Title:      "ASIAN & RICE",
			Variant:    models.VariantMagenta,
			Layout:     models.LayoutTwoColumn,
			Categories: concat(ref(models.SectionFood, 4), ref(models.SectionSides, 2)),
		},
		{
			Key:        "beers-coolers",
			Title:      "CRAFT BREWS & COOLERS",
			Variant:    models.VariantCyan,
			Layout:     models.LayoutTwoColumn,
			Categories: ref(models.SectionBeverages, 0, 1, 2),
		},
		{
			Key:        "spirits",
			Title:      "SPIRITS COLLECTION",
			Variant:    models.VariantCyan,
			Layout:     models.LayoutSingle,
			Categories: ref(models.SectionBeverages, 8, 3, 4, 10),
		},
		{
			Key:        "indian-whiskies",
			Title:      "INDIAN WHISKY RESERVES",
			Variant:    models.VariantGold,
			Layout:     models.LayoutSingle,
			Categories: ref(models.SectionBeverages, 5),
		},
		{
			Key:        "world-whiskies",
			Title:      "WORLD WHISKY COLLECTION",
			Variant:    models.VariantGold,
			Layout:     models.LayoutSingle,
			Annotation: "Too much of anything is bad, but too much good whisky is barely enough.",
			Categories: ref(models.SectionBeverages, 6),
		},
		{
			Key:        "premium",
			Title:      "PREMIUM SELECTION",
			Variant:    models.VariantGold,
			Layout:     models.LayoutTwoColumn,
			Categories: ref(models.SectionBeverages, 7, 9, 11),
		},
		{
			Key:        "refreshments",
			Title:      "REFRESHMENTS",
			Variant:    models.VariantCyan,
			Layout:     models.LayoutSingle,
			Annotation: "Life is too short to drink anything but the best.",
			Categories: concat(ref(models.SectionSides, 0), ref(models.SectionBeverages, 12)),
		},
	}
}
