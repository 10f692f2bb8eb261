package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestPrinter_English(t *testing.T) {
	p := NewPrinter("en")

	assert.Equal(t, "Settings restored successfully.", p.Message(RestoreSuccess))
	assert.Equal(t, "Settings sync failed: timeout", p.Message(SyncFailed, "timeout"))
}

func TestPrinter_German(t *testing.T) {
	for _, locale := range []string{"de", "de-DE", "de-AT"} {
		p := NewPrinter(locale)
		assert.Equal(t, "Die Sicherungsdaten sind ungültig oder beschädigt.", p.Message(RestoreFailedInvalid), locale)
	}
}

func TestPrinter_FallsBackToEnglish(t *testing.T) {
	for _, locale := range []string{"", "fr", "not a locale"} {
		p := NewPrinter(locale)
		assert.Equal(t, "Synced settings applied.", p.Message(SyncApplied), locale)
	}
}

func TestPrinter_Nil(t *testing.T) {
	var p *Printer
	assert.Equal(t, "Settings saved to webdav.", p.Message(SyncPushed, "webdav"))
}

func TestCatalog_EveryKeyInEveryLanguage(t *testing.T) {
	en := entries[language.English]
	for tag, msgs := range entries {
		assert.Len(t, msgs, len(en), tag.String())
		for key := range en {
			assert.Contains(t, msgs, key, tag.String())
		}
	}
}
