// Package checklist loads reporting-guideline checklists from JSON, YAML,
// or XLSX files. Checklist authoring itself is out of scope; this package
// only adapts existing files into the store.
package checklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/openrepro/repro-audit/internal/model"
)

// fileItem is the wire form of one checklist row. The JSON field names match
// the exports produced by guideline maintainers: the item id travels as
// "checklist_item_id" and the category as "title".
type fileItem struct {
	ItemID   string `json:"checklist_item_id" yaml:"checklist_item_id"`
	Title    string `json:"title" yaml:"title"`
	Question string `json:"question" yaml:"question"`
	Original string `json:"original" yaml:"original"`
	Section  string `json:"section" yaml:"section"`
}

func (f fileItem) toModel() model.ChecklistItem {
	return model.ChecklistItem{
		ItemID:   strings.TrimSpace(f.ItemID),
		Category: strings.TrimSpace(f.Title),
		Question: strings.TrimSpace(f.Question),
		Original: strings.TrimSpace(f.Original),
		Section:  strings.TrimSpace(f.Section),
	}
}

// LoadFile reads a checklist file, dispatching on the extension
// (.json, .yaml/.yml, .xlsx).
func LoadFile(path string) ([]model.ChecklistItem, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "checklist: read %s", path)
		}
		return LoadJSON(data)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "checklist: read %s", path)
		}
		return LoadYAML(data)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, eris.Errorf("checklist: unsupported file extension %q", ext)
	}
}

// LoadJSON parses a JSON array of checklist items.
func LoadJSON(data []byte) ([]model.ChecklistItem, error) {
	var raw []fileItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "checklist: parse json")
	}
	return validate(convert(raw))
}

// LoadYAML parses a YAML sequence of checklist items.
func LoadYAML(data []byte) ([]model.ChecklistItem, error) {
	var raw []fileItem
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "checklist: parse yaml")
	}
	return validate(convert(raw))
}

// xlsxColumns maps header names (lowercased) onto item fields. Both the
// JSON wire names and the shorter spreadsheet conventions are accepted.
var xlsxColumns = map[string]func(*fileItem, string){
	"checklist_item_id": func(f *fileItem, v string) { f.ItemID = v },
	"item_id":           func(f *fileItem, v string) { f.ItemID = v },
	"title":             func(f *fileItem, v string) { f.Title = v },
	"category":          func(f *fileItem, v string) { f.Title = v },
	"question":          func(f *fileItem, v string) { f.Question = v },
	"original":          func(f *fileItem, v string) { f.Original = v },
	"section":           func(f *fileItem, v string) { f.Section = v },
}

// LoadXLSX reads checklist items from the first sheet of an XLSX file. The
// first row is the header; unknown columns are ignored, fully empty rows
// skipped.
func LoadXLSX(path string) ([]model.ChecklistItem, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "checklist: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("checklist: xlsx file has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("checklist: xlsx sheet has no data rows")
	}

	setters := make([]func(*fileItem, string), len(sheet.Rows[0].Cells))
	known := 0
	for j, cell := range sheet.Rows[0].Cells {
		if set, ok := xlsxColumns[strings.ToLower(strings.TrimSpace(cell.String()))]; ok {
			setters[j] = set
			known++
		}
	}
	if known == 0 {
		return nil, eris.New("checklist: xlsx header row has no recognized columns")
	}

	var raw []fileItem
	for _, row := range sheet.Rows[1:] {
		var item fileItem
		empty := true
		for j, cell := range row.Cells {
			if j >= len(setters) || setters[j] == nil {
				continue
			}
			v := strings.TrimSpace(cell.String())
			if v != "" {
				empty = false
			}
			setters[j](&item, v)
		}
		if !empty {
			raw = append(raw, item)
		}
	}
	return validate(convert(raw))
}

func convert(raw []fileItem) []model.ChecklistItem {
	out := make([]model.ChecklistItem, len(raw))
	for i, r := range raw {
		out[i] = r.toModel()
	}
	return out
}

// validate enforces per-item mandatory fields and id uniqueness, preserving
// file order.
func validate(items []model.ChecklistItem) ([]model.ChecklistItem, error) {
	if len(items) == 0 {
		return nil, eris.New("checklist: no items")
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, eris.Wrapf(err, "checklist: item %d", i)
		}
		if seen[it.ItemID] {
			return nil, eris.Errorf("checklist: duplicate item id %q", it.ItemID)
		}
		seen[it.ItemID] = true
	}
	return items, nil
}
