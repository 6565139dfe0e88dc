package linker

import (
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

var (
	jaOnce sync.Once
	jaTok  *tokenizer.Tokenizer
)

// japaneseFragments segments Japanese text with the kagome IPA dictionary and
// returns the base (dictionary) form of each token, so conjugated verbs and
// adjectives match the word the learner actually added. The dictionary load
// is deferred until the first Japanese sentence arrives.
func japaneseFragments(text string) []string {
	jaOnce.Do(func() {
		t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
		if err == nil {
			jaTok = t
		}
	})
	if jaTok == nil {
		return splitWords(text)
	}

	tokens := jaTok.Tokenize(text)
	fragments := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(tok.Surface) == "" {
			continue
		}

		// IPA feature 6 is the base form; "*" means none recorded.
		base := tok.Surface
		if features := tok.Features(); len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		fragments = append(fragments, base)
	}
	return fragments
}
