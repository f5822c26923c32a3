package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runGeo(t *testing.T, lookup CountryLookup, mutate func(*http.Request)) (locale, country string) {
	t.Helper()
	handler := Geo("en", lookup)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	if mutate != nil {
		mutate(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return locale, country
}

func TestGeoDetectsLocaleFromAcceptLanguage(t *testing.T) {
	locale, _ := runGeo(t, nil, func(r *http.Request) {
		r.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.8")
	})
	assert.Equal(t, "id", locale)
}

func TestGeoLocaleHeaderOverridesAcceptLanguage(t *testing.T) {
	locale, _ := runGeo(t, nil, func(r *http.Request) {
		r.Header.Set("Accept-Language", "id-ID")
		r.Header.Set("X-Locale", "fr-CA")
	})
	assert.Equal(t, "fr", locale)
}

func TestGeoInvalidLocaleFallsBack(t *testing.T) {
	locale, _ := runGeo(t, nil, func(r *http.Request) {
		r.Header.Set("X-Locale", "not a locale !!")
	})
	assert.Equal(t, "en", locale)
}

func TestGeoDefaultLocaleWithoutHeaders(t *testing.T) {
	locale, country := runGeo(t, nil, nil)
	assert.Equal(t, "en", locale)
	assert.Empty(t, country, "no lookup configured")
}

func TestGeoResolvesCountry(t *testing.T) {
	var lookedUp string
	lookup := func(ip string) (string, error) {
		lookedUp = ip
		return "id", nil
	}
	_, country := runGeo(t, lookup, nil)
	assert.Equal(t, "ID", country)
	assert.Equal(t, "203.0.113.9", lookedUp)
}

func TestGeoLookupErrorLeavesCountryEmpty(t *testing.T) {
	lookup := func(string) (string, error) { return "", errors.New("db closed") }
	_, country := runGeo(t, lookup, nil)
	assert.Empty(t, country)
}
