package domain

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NoCategory is the label used when nothing has been picked.
const NoCategory = "No Category"

// DefaultCategories is the built-in category list, NoCategory first.
var DefaultCategories = Categories{
	NoCategory,
	"Apple Store",
	"Bar",
	"Bookstore",
	"Club",
	"Grocery Store",
	"Historic Building",
	"House",
	"Icecream Vendor",
	"Landmark",
	"Park",
}

// Categories is an ordered list of category labels for tagging a fix.
type Categories []string

// IndexOf returns the position of name, or -1 when it is not listed.
func (c Categories) IndexOf(name string) int {
	for i, n := range c {
		if n == name {
			return i
		}
	}
	return -1
}

// Label returns name if listed, otherwise NoCategory.
func (c Categories) Label(name string) string {
	if name == "" || c.IndexOf(name) < 0 {
		return NoCategory
	}
	return name
}

type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories reads a YAML file of the form "categories: [a, b, ...]".
// NoCategory is prepended when the file does not list it.
func LoadCategories(path string) (Categories, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("categories file lists no categories")
	}
	out := Categories(f.Categories)
	if out.IndexOf(NoCategory) < 0 {
		out = append(Categories{NoCategory}, out...)
	}
	return out, nil
}
