package plan

import (
	"fmt"
	"os"

	"livemenu/internal/models"

	"gopkg.in/yaml.v3"
)

type planFile struct {
	Pages []Entry `yaml:"pages"`
}

// LoadFile reads plan entries from a YAML file of the form
//
//	pages:
//	  - key: spirits
//	    title: SPIRITS COLLECTION
//	    variant: cyan
//	    layout: single
//	    categories:
//	      - {section: beverages, index: 3}
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Entry, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}
	if len(f.Pages) == 0 {
		return nil, fmt.Errorf("plan file has no pages")
	}
	for i := range f.Pages {
		page := &f.Pages[i]
		layout, err := models.ParseLayout(string(page.Layout))
		if err != nil {
			return nil, fmt.Errorf("plan entry %q: %w", page.Key, err)
		}
		page.Layout = layout
		if variant, err := models.ParseVariant(string(page.Variant)); err == nil {
			page.Variant = variant
		}
		if err := page.validate(); err != nil {
			return nil, err
		}
	}
	return f.Pages, nil
}
