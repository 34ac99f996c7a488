// Package assets resolves the fonts and company logos a flyer is drawn with.
//
// Every remote asset goes through a cache-or-fetch policy and every failure is
// absorbed here: fonts fall back to a built-in face and logos are reported
// absent. Nothing in this package returns an error past ResolveFont or
// ResolveLogo.
package assets

import (
	"errors"
	"fmt"
)

// ErrAssetUnavailable marks a font or logo that could not be fetched or decoded.
var ErrAssetUnavailable = errors.New("asset unavailable")

// Kind tags what an asset Key refers to.
type Kind int

const (
	KindFont Kind = iota
	KindLogo
)

func (k Kind) String() string {
	switch k {
	case KindFont:
		return "font"
	case KindLogo:
		return "logo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies an asset in the process-wide caches: a font by file name, a
// logo by domain.
type Key struct {
	Kind Kind
	Name string
}

func (k Key) String() string {
	return k.Kind.String() + ":" + k.Name
}
