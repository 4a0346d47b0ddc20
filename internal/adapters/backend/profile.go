package backend

import (
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

// ProfileExpressions are JMESPath expressions locating ResolvedUser fields in a backend
// identity document. Empty expressions fall back to DefaultProfileExpressions.
type ProfileExpressions struct {
	ID            string
	Email         string
	Name          string
	Phone         string
	Area          string
	Role          string
	PhoneVerified string
}

// DefaultProfileExpressions match the /api/auth/me response ({id, email, role, metadata})
// as well as a bare users row (name, phone, area, is_phone_verified).
func DefaultProfileExpressions() ProfileExpressions {
	return ProfileExpressions{
		ID:            "id || clerk_id || user_id || sub",
		Email:         "email || metadata.email",
		Name:          "name || metadata.full_name || metadata.name || full_name",
		Phone:         "phone || metadata.phone || phone_number",
		Area:          "area || metadata.area",
		Role:          "role || metadata.role",
		PhoneVerified: "is_phone_verified || phone_verified || metadata.is_phone_verified || metadata.phone_verified",
	}
}

// ProfileMapper converts arbitrary identity JSON into a ResolvedUser.
type ProfileMapper struct {
	exprs ProfileExpressions
}

// NewProfileMapper validates every expression up front.
func NewProfileMapper(exprs ProfileExpressions) (*ProfileMapper, error) {
	def := DefaultProfileExpressions()
	merged := ProfileExpressions{
		ID:            orDefault(exprs.ID, def.ID),
		Email:         orDefault(exprs.Email, def.Email),
		Name:          orDefault(exprs.Name, def.Name),
		Phone:         orDefault(exprs.Phone, def.Phone),
		Area:          orDefault(exprs.Area, def.Area),
		Role:          orDefault(exprs.Role, def.Role),
		PhoneVerified: orDefault(exprs.PhoneVerified, def.PhoneVerified),
	}
	for field, expr := range merged.fields() {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("profile expression %s: %w", field, err)
		}
	}
	return &ProfileMapper{exprs: merged}, nil
}

// ValidateExpression reports whether expr compiles. Empty expressions are valid.
func ValidateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (e ProfileExpressions) fields() map[string]string {
	return map[string]string{
		"id":             e.ID,
		"email":          e.Email,
		"name":           e.Name,
		"phone":          e.Phone,
		"area":           e.Area,
		"role":           e.Role,
		"phone_verified": e.PhoneVerified,
	}
}

// Map builds a ResolvedUser from a decoded JSON document. A document without an id is rejected.
func (m *ProfileMapper) Map(doc any) (domainauth.ResolvedUser, error) {
	id := m.str(m.exprs.ID, doc)
	if id == "" {
		return domainauth.ResolvedUser{}, fmt.Errorf("identity document has no id")
	}
	return domainauth.ResolvedUser{
		ID:            id,
		Email:         m.str(m.exprs.Email, doc),
		Name:          m.str(m.exprs.Name, doc),
		Phone:         m.str(m.exprs.Phone, doc),
		Area:          m.str(m.exprs.Area, doc),
		Role:          domainauth.ParseRole(m.str(m.exprs.Role, doc)),
		PhoneVerified: m.boolean(m.exprs.PhoneVerified, doc),
	}, nil
}

func (m *ProfileMapper) search(expr string, doc any) any {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil
	}
	return v
}

func (m *ProfileMapper) str(expr string, doc any) string {
	switch v := m.search(expr, doc).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (m *ProfileMapper) boolean(expr string, doc any) bool {
	switch v := m.search(expr, doc).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	case float64:
		return v != 0
	default:
		return false
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
