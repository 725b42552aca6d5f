// Package gifs maintains the keyword-to-media index: lowercase categories
// mapped to ordered lists of opaque media references (Matrix mxc:// URIs).
// Group messages matching a category keyword get a random GIF back; new GIFs
// are filed by the admin over private chat.
package gifs

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"github.com/bdobrica/poruko/internal/poruko/docstore"
)

// Index is the persisted keyword index.
type Index struct {
	store *docstore.Store[map[string][]string]
	pick  func(n int) int
}

// New creates an Index persisting at path.
func New(path string) *Index {
	return &Index{
		store: docstore.New(path, func() map[string][]string {
			return map[string][]string{}
		}),
		pick: rand.Intn,
	}
}

// Add files a media reference under a category, creating the category when
// needed. Returns false without saving when the reference is already filed.
func (i *Index) Add(category, ref string) (bool, error) {
	category = normalize(category)
	if category == "" {
		return false, fmt.Errorf("gifs: empty category")
	}

	doc := i.store.Load()
	for _, existing := range doc[category] {
		if existing == ref {
			return false, nil
		}
	}
	doc[category] = append(doc[category], ref)

	if err := i.store.Save(doc); err != nil {
		return false, fmt.Errorf("gifs: persist: %w", err)
	}
	return true, nil
}

// Match finds a category whose keyword appears as a whole word in text.
// Longer keywords are tried first so "zarigueya bebé" beats "zarigueya".
func (i *Index) Match(text string) (string, bool) {
	doc := i.store.Load()

	keywords := make([]string, 0, len(doc))
	for k := range doc {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(a, b int) bool {
		if len(keywords[a]) != len(keywords[b]) {
			return len(keywords[a]) > len(keywords[b])
		}
		return keywords[a] < keywords[b]
	})

	lower := strings.ToLower(text)
	for _, k := range keywords {
		// regexp's \b is ASCII-only and fails on accented categories like
		// "bebé" or "camión", so use an explicit Unicode boundary class.
		re, err := regexp.Compile(boundary + regexp.QuoteMeta(k) + boundaryEnd)
		if err != nil {
			continue
		}
		if re.MatchString(lower) {
			return k, true
		}
	}
	return "", false
}

const (
	boundary    = `(?:^|[^\p{L}\p{N}_])`
	boundaryEnd = `(?:$|[^\p{L}\p{N}_])`
)

// Pick returns a random media reference from a category, or false when the
// category is unknown or empty.
func (i *Index) Pick(category string) (string, bool) {
	doc := i.store.Load()
	refs := doc[normalize(category)]
	if len(refs) == 0 {
		return "", false
	}
	return refs[i.pick(len(refs))], true
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
