package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "companies.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDirectory_ReadsFileSortedByName(t *testing.T) {
	p := writeFile(t, `{"companies":[
		{"name":"Stripe","domain":"stripe.com"},
		{"name":"Adobe","domain":"Adobe.com"},
		{"name":"","domain":"nameless.com"},
		{"name":"Stripe","domain":"dup.com"}
	]}`)

	d := LoadDirectory(p)
	require.Equal(t, 2, d.Len())
	assert.Equal(t, []Company{
		{Name: "Adobe", Domain: "adobe.com"},
		{Name: "Stripe", Domain: "stripe.com"},
	}, d.All())
}

func TestLoadDirectory_FallsBack(t *testing.T) {
	tests := map[string]string{
		"missing":   filepath.Join(t.TempDir(), "absent.json"),
		"malformed": writeFile(t, `{"companies": [`),
		"empty":     writeFile(t, `{"companies": []}`),
		"unusable":  writeFile(t, `{"companies": [{"name":"x"}]}`),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			d := LoadDirectory(path)
			assert.Equal(t, len(FallbackCompanies), d.Len())
			domain, ok := d.Lookup("Google")
			assert.True(t, ok)
			assert.Equal(t, "google.com", domain)
		})
	}
}

func TestDirectoryLookup(t *testing.T) {
	d := NewDirectory([]Company{{Name: "GitHub", Domain: "github.com"}, {Name: "github", Domain: "other.com"}})

	domain, ok := d.Lookup("github")
	assert.True(t, ok)
	assert.Equal(t, "other.com", domain, "exact match wins over case-insensitive")

	domain, ok = d.Lookup(" GITHUB ")
	assert.True(t, ok)
	assert.Equal(t, "github.com", domain)

	_, ok = d.Lookup("Acme Corp")
	assert.False(t, ok)
}

func TestDirectoryAllReturnsCopy(t *testing.T) {
	d := NewDirectory(FallbackCompanies)
	all := d.All()
	all[0].Name = "mutated"
	assert.NotEqual(t, "mutated", d.All()[0].Name)
}

func TestLogoURL(t *testing.T) {
	assert.Equal(t, "https://logo.clearbit.com/google.com", LogoURL("logo.clearbit.com", "google.com"))
	assert.Equal(t, "http://127.0.0.1:8080/google.com", LogoURL("http://127.0.0.1:8080/", "google.com"))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "font:LilitaOne-Regular.ttf", Key{Kind: KindFont, Name: "LilitaOne-Regular.ttf"}.String())
	assert.Equal(t, "logo:google.com", Key{Kind: KindLogo, Name: "google.com"}.String())
}
