package wsgi

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/indigo-web/utils/uf"
)

// translateCacheSize bounds the header-name cache. Real traffic cycles
// through a few dozen distinct names; the LRU keeps hostile clients from
// growing the table without bound.
const translateCacheSize = 256

type translator struct {
	cache *lru.Cache[string, string]
}

func newTranslator() *translator {
	cache, err := lru.New[string, string](translateCacheSize)
	if err != nil {
		panic(err)
	}

	return &translator{cache: cache}
}

// Translate maps a header name to its environ key: uppercased, dashes
// replaced with underscores, prefixed with HTTP_. X-Foo-Bar becomes
// HTTP_X_FOO_BAR.
func (t *translator) Translate(name string) string {
	if cached, ok := t.cache.Get(name); ok {
		return cached
	}

	translated := make([]byte, 0, len(name)+len("HTTP_"))
	translated = append(translated, "HTTP_"...)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-':
			c = '_'
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		}
		translated = append(translated, c)
	}

	result := uf.B2S(translated)
	t.cache.Add(name, result)

	return result
}
