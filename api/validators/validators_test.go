package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

type rejectPayload struct {
	RequestID string `json:"requestId" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"required,max=10"`
}

func decode(body string) (rejectPayload, error) {
	var dest rejectPayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBody(t *testing.T) {
	dest, err := decode(`{"requestId":"8d6f2c3e-7a8e-4d34-9d55-54b1d0e1b4b2","reason":"dup"}`)
	require.NoError(t, err)
	assert.Equal(t, "dup", dest.Reason)

	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"requestId":"8d6f2c3e-7a8e-4d34-9d55-54b1d0e1b4b2","reason":"dup","extra":1}`,
		"trailing data": `{"requestId":"8d6f2c3e-7a8e-4d34-9d55-54b1d0e1b4b2","reason":"dup"} {}`,
		"not json":      `reason=dup`,
	}
	for name, body := range cases {
		_, err := decode(body)
		require.Error(t, err, name)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), name)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	_, err := decode(`{"requestId":"nope","reason":"far too long a reason"}`)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a UUID", details["requestId"])
	assert.Equal(t, "must be at most 10", details["reason"])
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	huge := `{"requestId":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	_, err := decode(huge)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "progressive lens", SanitizeString("  progressive \t\n lens ", 0))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 0))
	assert.Equal(t, "lenté", SanitizeString("lentéjoula", 5))
}

func TestQueryParsers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&active=yes&family=finished&id=abc", nil)

	_, err := ParseQueryInt(req, "limit", 25, 1, 100)
	assert.Error(t, err)
	limit, err := ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	_, err = ParseQueryBool(req, "active")
	assert.Error(t, err)

	family, err := ParseQueryEnum(req, "family", enums.ParseCategoryFamily)
	require.NoError(t, err)
	require.NotNil(t, family)
	assert.Equal(t, enums.CategoryFamilyFinished, *family)

	_, err = ParseQueryUUID(req, "id")
	assert.Error(t, err)
	missing, err := ParseQueryUUID(req, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseURLUUID("not-a-uuid", "productId")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
