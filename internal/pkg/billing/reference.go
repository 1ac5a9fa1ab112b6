package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Reference ties a payment to the community being upgraded and the user who paid.
type Reference struct {
	CommunityID uint
	UserID      string
}

func (r Reference) String() string {
	return fmt.Sprintf("srv=%d|uid=%s", r.CommunityID, r.UserID)
}

// ParseReference reads "srv=<community id>|uid=<user id>". Pairs may also be
// separated by ';', '&' or ','.
func ParseReference(raw string) (Reference, error) {
	var ref Reference
	s := strings.TrimSpace(raw)
	if s == "" {
		return ref, ErrMalformedReference
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';' || r == '&' || r == ','
	})
	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Reference{}, ErrMalformedReference
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "srv", "server_id", "community_id":
			id, err := strconv.ParseUint(value, 10, 32)
			if err != nil || id == 0 {
				return Reference{}, ErrMalformedReference
			}
			ref.CommunityID = uint(id)
		case "uid", "user_id":
			if !validUserID(value) {
				return Reference{}, ErrMalformedReference
			}
			ref.UserID = value
		}
	}

	if ref.CommunityID == 0 || ref.UserID == "" {
		return Reference{}, ErrMalformedReference
	}
	return ref, nil
}

func validUserID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':' || r == '@':
		default:
			return false
		}
	}
	return true
}

var referencePaths = []string{
	"metadata.reference",
	"metadata.ref",
	"custom_data.reference",
	"data.metadata.reference",
	"data.metadata.ref",
	"data.custom_data.reference",
	"data.object.metadata.reference",
	"data.attributes.custom_data.reference",
	"meta.custom_data.reference",
	"reference",
}

// findReference returns the first parseable reference in the payload. Known
// locations are tried first, then every "reference"/"ref" key anywhere.
func findReference(p Payload) (Reference, error) {
	for _, path := range referencePaths {
		if raw := p.String(path); raw != "" {
			if ref, err := ParseReference(raw); err == nil {
				return ref, nil
			}
		}
	}

	var found Reference
	ok := walk(map[string]interface{}(p), func(key string, value interface{}) bool {
		if key != "reference" && key != "ref" {
			return false
		}
		ref, err := ParseReference(scalarString(value))
		if err != nil {
			return false
		}
		found = ref
		return true
	})
	if !ok {
		return Reference{}, ErrMalformedReference
	}
	return found, nil
}
