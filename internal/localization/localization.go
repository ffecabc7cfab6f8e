package localization

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed texts.yaml
var embeddedTexts []byte

// Localizer resolves message templates by key. Templates use fmt verbs;
// callers pass arguments positionally.
type Localizer struct {
	texts map[string]string
}

// New builds a Localizer from the embedded default texts.
func New() (*Localizer, error) {
	return parse(embeddedTexts)
}

// NewFromFile builds a Localizer from a YAML file. Keys present in the
// file override the embedded defaults, so partial overrides are fine.
func NewFromFile(path string) (*Localizer, error) {
	base, err := parse(embeddedTexts)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("localization: read %s: %w", path, err)
	}
	override, err := parse(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range override.texts {
		base.texts[k] = v
	}
	return base, nil
}

func parse(raw []byte) (*Localizer, error) {
	texts := make(map[string]string)
	if err := yaml.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("localization: parse texts: %w", err)
	}
	return &Localizer{texts: texts}, nil
}

// Text formats the template stored under key. An unknown key returns the
// key itself so a missing translation is visible instead of silent.
func (l *Localizer) Text(key string, args ...any) string {
	tpl, ok := l.texts[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tpl
	}
	return fmt.Sprintf(tpl, args...)
}

// Has reports whether a template exists for key.
func (l *Localizer) Has(key string) bool {
	_, ok := l.texts[key]
	return ok
}
