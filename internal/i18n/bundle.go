package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the fallback for keys missing from a more specific locale.
const BaseLocale = "en-US"

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// Bundle holds every locale's messages and one printer per locale. It owns its
// own x/text catalog; nothing is registered process-wide.
type Bundle struct {
	messages map[string]map[string]string
	tags     []language.Tag
	locales  []string
	matcher  language.Matcher
	printers map[string]*message.Printer
}

func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml files.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{messages: map[string]map[string]string{}}
	seenNS := map[string]bool{}
	for _, path := range paths {
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		locale := strings.TrimSpace(f.Locale)
		if locale == "" {
			return nil, fmt.Errorf("catalog %s: locale is required", path)
		}
		if dir := filepath.Base(filepath.Dir(path)); locale != dir {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, dir)
		}
		ns := strings.TrimSpace(f.Namespace)
		if want := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)); ns != want {
			return nil, fmt.Errorf("catalog %s: namespace %q must match filename %q", path, ns, want)
		}
		if seenNS[locale+"/"+ns] {
			return nil, fmt.Errorf("catalog %s: namespace %q already defined for %q", path, ns, locale)
		}
		seenNS[locale+"/"+ns] = true

		msgs := b.messages[locale]
		if msgs == nil {
			msgs = map[string]string{}
			b.messages[locale] = msgs
		}
		for k, v := range f.Messages {
			k = strings.TrimSpace(k)
			if k == "" {
				return nil, fmt.Errorf("catalog %s: message key cannot be blank", path)
			}
			if _, dup := msgs[k]; dup {
				return nil, fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, k, locale)
			}
			msgs[k] = v
		}
	}
	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) build() error {
	builder := catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale)))

	// Base locale first so the matcher falls back to it.
	b.locales = append(b.locales, BaseLocale)
	for locale := range b.messages {
		if locale != BaseLocale {
			b.locales = append(b.locales, locale)
		}
	}
	sort.Strings(b.locales[1:])

	for _, locale := range b.locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
		for key, msg := range b.messages[locale] {
			if err := builder.SetString(tag, key, msg); err != nil {
				return fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	b.printers = make(map[string]*message.Printer, len(b.locales))
	for i, locale := range b.locales {
		b.printers[locale] = message.NewPrinter(b.tags[i], message.Catalog(builder))
	}
	return nil
}

// Locales returns the loaded locale ids, base locale first.
func (b *Bundle) Locales() []string {
	return append([]string(nil), b.locales...)
}

// ParseLocale accepts both "en-US" and the client form "en_us".
func ParseLocale(s string) (language.Tag, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" {
		return language.Und, fmt.Errorf("empty locale")
	}
	return language.Parse(s)
}

// Match picks the closest loaded locale for tag.
func (b *Bundle) Match(tag language.Tag) string {
	if b == nil || b.matcher == nil {
		return BaseLocale
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(b.locales) {
		return BaseLocale
	}
	return b.locales[idx]
}

// Message returns one message with base-locale fallback.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	if v, ok := b.messages[locale][key]; ok {
		return v, true
	}
	v, ok := b.messages[BaseLocale][key]
	return v, ok
}

// Localize resolves every translatable component whose key is known into a
// literal in the locale closest to tag. Unknown keys are left for the client.
func (b *Bundle) Localize(t Text, tag language.Tag) Text {
	if b == nil {
		return t
	}
	return b.localize(t, b.Match(tag))
}

func (b *Bundle) localize(t Text, locale string) Text {
	out := t
	if len(t.Extra) > 0 {
		out.Extra = make([]Text, len(t.Extra))
		for i, e := range t.Extra {
			out.Extra[i] = b.localize(e, locale)
		}
	}
	if t.Translate == "" {
		return out
	}
	with := make([]Text, len(t.With))
	for i, w := range t.With {
		with[i] = b.localize(w, locale)
	}
	printerLocale := locale
	if _, ok := b.messages[locale][t.Translate]; !ok {
		if _, ok := b.messages[BaseLocale][t.Translate]; !ok {
			out.With = with
			return out
		}
		printerLocale = BaseLocale
	}
	args := make([]any, len(with))
	for i, w := range with {
		args[i] = w.String()
	}
	out.Text = b.printers[printerLocale].Sprintf(t.Translate, args...)
	out.Translate = ""
	out.With = nil
	return out
}
