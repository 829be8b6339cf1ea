package common

import (
	"strings"
	"unicode"
)

// forbidden in every name regardless of the extra characters a rule allows
const forbiddenChars = "/~@()[]{}<>\"'`|\\;,"

// ValidateNamespaceName checks a namespace name: letters, digits and -_$.
// A name must not start or end with a dot or contain consecutive dots.
func ValidateNamespaceName(name string) error {
	if name == "" {
		return Wrap(ErrInvalidName, "namespace name cannot be empty")
	}
	for _, ch := range name {
		if rejectOutright(ch) {
			return Wrap(ErrInvalidName, "namespace name %q contains forbidden character %q", name, ch)
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && !strings.ContainsRune("-_$.", ch) {
			return Wrap(ErrInvalidName, "namespace name %q contains invalid character %q, allowed: letters, digits and -_$.", name, ch)
		}
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return Wrap(ErrInvalidName, "namespace name %q cannot start or end with a dot", name)
	}
	if strings.Contains(name, "..") {
		return Wrap(ErrInvalidName, "namespace name %q cannot contain consecutive dots", name)
	}
	return nil
}

// ValidateDefinitionName checks a definition name: letters, digits and !#%&*-_+:?
func ValidateDefinitionName(name string) error {
	if name == "" {
		return Wrap(ErrInvalidName, "definition name cannot be empty")
	}
	for _, ch := range name {
		if rejectOutright(ch) {
			return Wrap(ErrInvalidName, "definition name %q contains forbidden character %q", name, ch)
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && !strings.ContainsRune("!#%&*-_+:?", ch) {
			return Wrap(ErrInvalidName, "definition name %q contains invalid character %q, allowed: letters, digits and !#%%&*-_+:?", name, ch)
		}
	}
	return nil
}

func rejectOutright(ch rune) bool {
	return unicode.IsControl(ch) || unicode.IsSpace(ch) || strings.ContainsRune(forbiddenChars, ch)
}
