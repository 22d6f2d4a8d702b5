package metadata

import (
	"strings"

	"github.com/openrepro/repro-audit/internal/llmjson"
	"github.com/openrepro/repro-audit/internal/model"
)

// requiredFields must all be present in the model response. Their values may
// be empty (a preprint often has no DOI yet) but the keys must exist; a
// missing key means the model ignored the format instructions.
var requiredFields = []string{"title", "authors", "design", "doi", "abstract"}

// validateFields checks the parsed response field by field and builds the
// metadata value. Optional fields (email, discipline) default to "".
func validateFields(raw map[string]any) (model.ManuscriptMetadata, error) {
	var zero model.ManuscriptMetadata

	for _, f := range requiredFields {
		if _, ok := raw[f]; !ok {
			return zero, &llmjson.SchemaError{Field: f, Msg: "required field missing"}
		}
	}

	var meta model.ManuscriptMetadata
	var err error

	if meta.Title, err = stringField(raw, "title"); err != nil {
		return zero, err
	}
	if meta.Title == "" {
		return zero, &llmjson.SchemaError{Field: "title", Msg: "must be non-empty"}
	}

	if meta.Authors, err = stringSliceField(raw, "authors"); err != nil {
		return zero, err
	}
	if len(meta.Authors) == 0 {
		return zero, &llmjson.SchemaError{Field: "authors", Msg: "must list at least one author"}
	}

	if meta.Design, err = stringField(raw, "design"); err != nil {
		return zero, err
	}
	if meta.DOI, err = stringField(raw, "doi"); err != nil {
		return zero, err
	}
	if meta.Abstract, err = stringField(raw, "abstract"); err != nil {
		return zero, err
	}
	if meta.Email, err = stringField(raw, "email"); err != nil {
		return zero, err
	}
	if meta.Discipline, err = stringField(raw, "discipline"); err != nil {
		return zero, err
	}

	return meta, nil
}

// stringField reads an optional string field; absent fields yield "".
func stringField(raw map[string]any, name string) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &llmjson.SchemaError{Field: name, Msg: "must be a string"}
	}
	return strings.TrimSpace(s), nil
}

// stringSliceField reads a field that must be an array of strings.
func stringSliceField(raw map[string]any, name string) ([]string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &llmjson.SchemaError{Field: name, Msg: "must be an array of strings"}
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok {
			return nil, &llmjson.SchemaError{Field: name, Msg: "must be an array of strings"}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func containsPlaceholder(template string) bool {
	return strings.Contains(template, textPlaceholder)
}

func replacePlaceholder(template, text string) string {
	return strings.Replace(template, textPlaceholder, text, 1)
}
