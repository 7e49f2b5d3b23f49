package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	bundle        *i18n.Bundle
	matcher       language.Matcher
	defaultLocale = "id"
	once          sync.Once
)

type ctxKey struct{}

// Init loads all locale files and sets the default locale. Safe to call more than once;
// files are parsed only the first time.
func Init(defLocale string) {
	if defLocale != "" {
		defaultLocale = defLocale
	}
	once.Do(load)
}

func load() {
	bundle = i18n.NewBundle(language.Indonesian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		log.Fatalf("[ERROR] i18n: read locales dir: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			log.Fatalf("[ERROR] i18n: read %s: %v", e.Name(), err)
		}
		bundle.MustParseMessageFileBytes(data, e.Name())
	}
	matcher = language.NewMatcher(bundle.LanguageTags())
	log.Printf("[INFO] i18n: loaded %d locale files, default=%s", len(entries), defaultLocale)
}

// WithLocale returns a new context carrying the given locale string (e.g. "id", "en").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFromContext returns the locale carried by ctx, or the default locale.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return defaultLocale
}

// T translates a message ID using the locale from the context.
func T(ctx context.Context, messageID string, templateData ...map[string]any) string {
	once.Do(load)
	l := i18n.NewLocalizer(bundle, LocaleFromContext(ctx), defaultLocale)

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(templateData) > 0 && templateData[0] != nil {
		cfg.TemplateData = templateData[0]
	}

	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

// Middleware picks the request locale from Accept-Language.
func Middleware() gin.HandlerFunc {
	once.Do(load)
	return func(c *gin.Context) {
		accept := c.GetHeader("Accept-Language")
		if accept == "" {
			c.Next()
			return
		}
		tags, _, err := language.ParseAcceptLanguage(accept)
		if err != nil || len(tags) == 0 {
			c.Next()
			return
		}
		tag, _, conf := matcher.Match(tags...)
		if conf == language.No {
			c.Next()
			return
		}
		base, _ := tag.Base()
		c.Request = c.Request.WithContext(WithLocale(c.Request.Context(), base.String()))
		c.Next()
	}
}
