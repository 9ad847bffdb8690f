package catalogitem

import (
	"context"
	"strings"
	"unicode"

	gerrors "github.com/go-faster/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrNotFound = gerrors.New("catalog item not found")

type CatalogItem struct {
	ID          int64
	Description string
}

type Repository interface {
	// GetByDescription matches accent- and case-insensitively.
	GetByDescription(ctx context.Context, description string) (*CatalogItem, error)
	GetAll(ctx context.Context) ([]*CatalogItem, error)
	Create(ctx context.Context, item *CatalogItem) (*CatalogItem, error)
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDescription folds a free-text item description into the canonical
// form used for catalog lookups: trimmed, uppercased, accents removed and
// inner whitespace collapsed.
func NormalizeDescription(s string) string {
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
