// Package expansion expands ${...} references inside configuration structs.
package expansion

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Resolver turns the inside of a ${...} reference into its value.
type Resolver func(reference string) (string, error)

// Expand walks target, which must be a pointer, and replaces every ${ref} in
// settable strings with resolve(ref). Any other '$' is kept as is, and "$${"
// yields a literal "${". Values are not trimmed. Nested structs, pointers,
// slices and maps are traversed. The first resolution error aborts the walk.
func Expand(target any, resolve Resolver) error {
	if target == nil {
		return nil
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return errors.Errorf("expansion target must be a pointer, got %T", target)
	}
	if v.IsNil() {
		return nil
	}
	return expandValue(v.Elem(), resolve)
}

func expandValue(val reflect.Value, resolve Resolver) error {
	switch val.Kind() {
	case reflect.String:
		if !val.CanSet() {
			return nil
		}
		expanded, err := expandString(val.String(), resolve)
		if err != nil {
			return err
		}
		val.SetString(expanded)

	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if err := expandValue(val.Field(i), resolve); err != nil {
				return err
			}
		}

	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		if val.Kind() == reflect.Interface {
			// interface contents are not addressable; expand a copy and store it back
			elem := val.Elem()
			cp := reflect.New(elem.Type()).Elem()
			cp.Set(elem)
			if err := expandValue(cp, resolve); err != nil {
				return err
			}
			if val.CanSet() {
				val.Set(cp)
			}
			return nil
		}
		return expandValue(val.Elem(), resolve)

	case reflect.Slice:
		for j := 0; j < val.Len(); j++ {
			if err := expandValue(val.Index(j), resolve); err != nil {
				return err
			}
		}

	case reflect.Map:
		for _, key := range val.MapKeys() {
			mapVal := val.MapIndex(key)
			newVal := reflect.New(mapVal.Type()).Elem()
			newVal.Set(mapVal)
			if err := expandValue(newVal, resolve); err != nil {
				return err
			}
			val.SetMapIndex(key, newVal)
		}
	}

	return nil
}

// expandString replaces ${ref} references in s. An unterminated "${" is an
// error so a typo never reaches a credential unnoticed.
func expandString(s string, resolve Resolver) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		if i > 0 && s[i-1] == '$' {
			b.WriteString(s[:i-1])
			b.WriteString("${")
			s = s[i+2:]
			continue
		}
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return "", errors.Errorf("unterminated reference in %q", s[i:])
		}
		ref := s[i+2 : i+2+end]
		res, err := resolve(ref)
		if err != nil {
			return "", errors.Wrapf(err, "error resolving property %q", ref)
		}
		b.WriteString(s[:i])
		b.WriteString(res)
		s = s[i+2+end+1:]
	}
}
