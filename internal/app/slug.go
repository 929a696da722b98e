package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// Slugify lowercases name and joins its letters and digits with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "box-office"
	}
	return b.String()
}

// uniqueSlug returns base, or base-2, base-3 and so on, whichever is free.
func uniqueSlug(ctx context.Context, repo domain.TenantRepository, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		_, err := repo.GetBySlug(ctx, slug)
		if errors.Is(err, domain.ErrTenantNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
