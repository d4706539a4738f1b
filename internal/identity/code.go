package identity

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sitepulse/kioskd/internal/model"
)

// CodeLength is the number of characters in an activation code.
const CodeLength = 6

var (
	validate = validator.New()
	upper    = cases.Upper(language.Und)
)

type activationCode struct {
	Code string `validate:"required,len=6,alphanum,uppercase"`
}

// NormalizeCode folds compatibility forms (e.g. full-width letters typed on a
// CJK keyboard) to ASCII, trims surrounding whitespace and upper-cases.
func NormalizeCode(input string) string {
	s := norm.NFKC.String(strings.TrimSpace(input))
	return upper.String(s)
}

// ParseCode normalizes input and checks it is exactly six ASCII letters or
// digits. It never touches the network.
func ParseCode(input string) (string, error) {
	code := NormalizeCode(input)
	if err := validate.Struct(activationCode{Code: code}); err != nil {
		return "", model.NewError(model.ErrCodeInvalidCode,
			"activation code must be %d letters or digits", CodeLength)
	}
	return code, nil
}
