package contracts

import (
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

type URL url.URL

func (this *URL) MarshalJSON() ([]byte, error) {
	return []byte(`"` + this.Value().String() + `"`), nil
}

func (this *URL) UnmarshalJSON(p []byte) error {
	raw := string(p)
	if raw == `"null"` || raw == "null" {
		return nil
	}
	return this.parse(strings.Trim(raw, "\""))
}

func (this URL) MarshalYAML() (interface{}, error) {
	return this.Value().String(), nil
}

func (this *URL) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw == "" || raw == "null" {
		return nil
	}
	return this.parse(raw)
}

func (this *URL) parse(raw string) error {
	address, err := url.Parse(raw)
	if err == nil {
		*this = URL(*address)
	}
	return err
}

func (this URL) Value() *url.URL {
	standard := url.URL(this)
	return &standard
}

func (this URL) String() string {
	return this.Value().String()
}

func ParseURL(raw string) (URL, error) {
	var address URL
	err := address.parse(raw)
	return address, err
}
