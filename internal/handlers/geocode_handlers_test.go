package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bloommarket/internal/config"
)

func geoHandlers(aliases string) *Handlers {
	cfg := &config.Config{}
	cfg.Geo.CityAliases = aliases
	return &Handlers{Cfg: cfg}
}

func TestExpandCityAliases(t *testing.T) {
	h := geoHandlers("екб=Екатеринбург,ekb=Екатеринбург,мск=Москва")

	cases := []struct {
		in   string
		want string
	}{
		{"екб ленина 5", "Екатеринбург ленина 5"},
		{"ЕКБ ленина 5", "Екатеринбург ленина 5"},
		{"ekb lenina 5", "Екатеринбург lenina 5"},
		{"мск тверская 1", "Москва тверская 1"},
		{"новосибирск красный проспект", "новосибирск красный проспект"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, h.expandCityAliases(tc.in), "input %q", tc.in)
	}
}

func TestCityAliasesParsing(t *testing.T) {
	h := geoHandlers(" екб=Екатеринбург , broken , =nope , x= ,спб=Санкт-Петербург")
	aliases := h.cityAliases()

	assert.Equal(t, "Екатеринбург", aliases["екб"])
	assert.Equal(t, "Санкт-Петербург", aliases["спб"])
	assert.Len(t, aliases, 2, "malformed pairs are dropped")
}
