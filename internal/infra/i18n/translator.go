package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator renders user-facing text from a flat key/format map.
type Translator struct {
	translations map[string]string
	helpText     string
}

// NewTranslator loads locales/<lang>.yaml and the optional locales/help-<lang>.txt.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}

	helpPath := path.Join("locales", fmt.Sprintf("help-%s.txt", langCode))
	if help, err := fs.ReadFile(fsys, helpPath); err == nil {
		t.helpText = string(help)
	}
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the key itself when no translation exists.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Help is the long-form /help text. It falls back to the help key.
func (t *Translator) Help(args ...interface{}) string {
	if t.helpText == "" {
		return t.T("help", args...)
	}
	if len(args) > 0 {
		return fmt.Sprintf(t.helpText, args...)
	}
	return t.helpText
}
