package backend

import (
	"encoding/json"
	"testing"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestProfileMapper_Defaults(t *testing.T) {
	m, err := NewProfileMapper(ProfileExpressions{})
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
		want domainauth.ResolvedUser
	}{
		{
			name: "me response",
			doc:  `{"id":"user_1","email":"a@b.c","role":"admin","metadata":{"full_name":"Asha"}}`,
			want: domainauth.ResolvedUser{ID: "user_1", Email: "a@b.c", Name: "Asha", Role: domainauth.RoleAdmin},
		},
		{
			name: "users row",
			doc:  `{"clerk_id":"user_2","name":"Ravi","phone":"+15551234567","area":"North","role":"user","is_phone_verified":true}`,
			want: domainauth.ResolvedUser{
				ID: "user_2", Name: "Ravi", Phone: "+15551234567", Area: "North",
				Role: domainauth.RoleViewer, PhoneVerified: true,
			},
		},
		{
			name: "numeric id and missing role",
			doc:  `{"id":42,"email":"w@b.c"}`,
			want: domainauth.ResolvedUser{ID: "42", Email: "w@b.c", Role: domainauth.RoleGuest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Map(decode(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfileMapper_RejectsDocumentWithoutID(t *testing.T) {
	m, err := NewProfileMapper(ProfileExpressions{})
	require.NoError(t, err)

	_, err = m.Map(decode(t, `{"email":"a@b.c"}`))
	require.Error(t, err)
	_, err = m.Map(nil)
	require.Error(t, err)
}

func TestProfileMapper_CustomExpressions(t *testing.T) {
	m, err := NewProfileMapper(ProfileExpressions{
		ID:   "data.uid",
		Role: "data.roles[0]",
	})
	require.NoError(t, err)

	got, err := m.Map(decode(t, `{"data":{"uid":"x9","roles":["worker","viewer"]},"email":"k@b.c"}`))
	require.NoError(t, err)
	assert.Equal(t, "x9", got.ID)
	assert.Equal(t, domainauth.RoleWorker, got.Role)
	assert.Equal(t, "k@b.c", got.Email, "unset expressions keep defaults")
}

func TestNewProfileMapper_InvalidExpression(t *testing.T) {
	_, err := NewProfileMapper(ProfileExpressions{Name: "metadata.[["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	assert.Error(t, ValidateExpression("a.[["))
	assert.NoError(t, ValidateExpression(""))
	assert.NoError(t, ValidateExpression("metadata.area"))
}
