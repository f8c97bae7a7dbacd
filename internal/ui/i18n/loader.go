// loader.go — встроенные каталоги переводов locales/{lang}.json.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
)

//go:embed locales/*.json
var locales embed.FS

// Load создаёт Bundle из встроенных каталогов и делает его глобальным.
func Load(logger *slog.Logger) (*Bundle, error) {
	bundle, err := LoadFS(locales, logger)
	if err != nil {
		return nil, err
	}
	SetBundle(bundle)
	return bundle, nil
}

// LoadFS читает каталог каждого поддерживаемого языка из fsys.
// Отсутствующий каталог — ошибка.
func LoadFS(fsys fs.FS, logger *slog.Logger) (*Bundle, error) {
	bundle := NewBundle(logger)
	for _, lang := range Codes() {
		data, err := fs.ReadFile(fsys, "locales/"+lang+".json")
		if err != nil {
			return nil, fmt.Errorf("i18n: каталог %s: %w", lang, err)
		}
		if err := bundle.LoadMessages(lang, data); err != nil {
			return nil, err
		}
	}
	logger.Info("i18n каталоги загружены", slog.Any("languages", Codes()))
	return bundle, nil
}
