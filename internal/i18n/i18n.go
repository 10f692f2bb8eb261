// Package i18n holds the short user-facing messages returned by settings
// operations, in every supported language.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	RestoreSuccess       = "settingsRestoreSettingsSuccess"
	RestoreFailedInvalid = "settingsRestoreSettingsFailedInvalid"
	RestoreFailed        = "settingsRestoreSettingsFailed"
	SyncFailed           = "settingsSyncFailed"
	SyncSkipped          = "settingsSyncSkipped"
	SyncApplied          = "settingsSyncApplied"
	SyncPushed           = "settingsSyncPushed"
	SyncDisabled         = "settingsSyncDisabled"
	FactoryResetDone     = "settingsFactoryResetDone"
)

var entries = map[language.Tag]map[string]string{
	language.English: {
		RestoreSuccess:       "Settings restored successfully.",
		RestoreFailedInvalid: "Backup data is invalid or corrupted.",
		RestoreFailed:        "Failed to restore the backup.",
		SyncFailed:           "Settings sync failed: %s",
		SyncSkipped:          "Settings are already up to date.",
		SyncApplied:          "Synced settings applied.",
		SyncPushed:           "Settings saved to %s.",
		SyncDisabled:         "Settings sync is turned off.",
		FactoryResetDone:     "All settings were reset to defaults.",
	},
	language.German: {
		RestoreSuccess:       "Einstellungen wurden erfolgreich wiederhergestellt.",
		RestoreFailedInvalid: "Die Sicherungsdaten sind ungültig oder beschädigt.",
		RestoreFailed:        "Die Sicherung konnte nicht wiederhergestellt werden.",
		SyncFailed:           "Synchronisierung der Einstellungen fehlgeschlagen: %s",
		SyncSkipped:          "Die Einstellungen sind bereits aktuell.",
		SyncApplied:          "Synchronisierte Einstellungen wurden übernommen.",
		SyncPushed:           "Einstellungen wurden in %s gespeichert.",
		SyncDisabled:         "Die Synchronisierung ist deaktiviert.",
		FactoryResetDone:     "Alle Einstellungen wurden zurückgesetzt.",
	},
}

var (
	cat     catalog.Catalog
	matcher language.Matcher
)

func init() {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	tags := []language.Tag{language.English}

	for tag, msgs := range entries {
		for key, text := range msgs {
			if err := b.SetString(tag, key, text); err != nil {
				panic(err)
			}
		}

		if tag != language.English {
			tags = append(tags, tag)
		}
	}

	cat = b
	matcher = language.NewMatcher(tags)
}

// Printer renders messages in one language.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for the closest supported match of
// locale, such as "de" or "de-AT". Unknown locales fall back to English.
func NewPrinter(locale string) *Printer {
	tag := language.English

	if parsed, err := language.Parse(locale); err == nil {
		matched, _, _ := matcher.Match(parsed)
		base, _ := matched.Base()
		tag = language.Make(base.String())
	}

	return &Printer{p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Message returns the text for key with args substituted. A nil Printer
// renders English.
func (p *Printer) Message(key string, args ...any) string {
	if p == nil {
		return NewPrinter("en").Message(key, args...)
	}

	return p.p.Sprintf(key, args...)
}
