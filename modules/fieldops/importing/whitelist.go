package importing

import (
	"os"

	gerrors "github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/catalogitem"
)

// Descriptions accepted on debris-removal lines. Anything else on a debris
// trip is a warning, not a billable item.
var defaultDebrisItems = []string{
	"RETIRO ESCOMBROS",
	"RETIRO TIERRA",
	"RETIRO PAVIMENTO",
	"RETIRO HORMIGON",
}

type DebrisWhitelist struct {
	items map[string]struct{}
}

func NewDebrisWhitelist(descriptions []string) *DebrisWhitelist {
	w := &DebrisWhitelist{items: make(map[string]struct{}, len(descriptions))}
	for _, d := range descriptions {
		w.items[catalogitem.NormalizeDescription(d)] = struct{}{}
	}
	return w
}

func DefaultDebrisWhitelist() *DebrisWhitelist {
	return NewDebrisWhitelist(defaultDebrisItems)
}

type whitelistFile struct {
	Items []string `yaml:"items"`
}

// LoadDebrisWhitelist reads a YAML override file of the form:
//
//	items:
//	  - RETIRO ESCOMBROS
func LoadDebrisWhitelist(path string) (*DebrisWhitelist, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to read debris whitelist")
	}
	var f whitelistFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, gerrors.Wrap(err, "failed to parse debris whitelist")
	}
	if len(f.Items) == 0 {
		return nil, gerrors.New("debris whitelist file lists no items")
	}
	return NewDebrisWhitelist(f.Items), nil
}

func (w *DebrisWhitelist) Allows(description string) bool {
	_, ok := w.items[catalogitem.NormalizeDescription(description)]
	return ok
}

func (w *DebrisWhitelist) Len() int {
	return len(w.items)
}
