package auth_test

import (
	"testing"
	"time"

	"frontpage/auth"
	"frontpage/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-that-is-long-enough-for-hs256")

func testProfile() models.Profile {
	return models.Profile{
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
		Nickname:      "ada",
		Name:          "Ada Lovelace",
		Picture:       "https://example.com/ada.png",
		Email:         "ada@example.com",
		EmailVerified: true,
	}
}

func TestTokenRoundtrip(t *testing.T) {
	raw, err := auth.IssueToken(testProfile(), testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := auth.ParseToken(raw, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, testProfile(), claims.Profile())
}

func TestParseTokenExpired(t *testing.T) {
	raw, err := auth.IssueToken(testProfile(), testSecret, -time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken(raw, testSecret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenWrongSecret(t *testing.T) {
	raw, err := auth.IssueToken(testProfile(), testSecret, time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken(raw, []byte("a-completely-different-secret-value"))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := auth.ParseToken("not.a.token", testSecret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenMissingEmail(t *testing.T) {
	profile := testProfile()
	profile.Email = ""

	raw, err := auth.IssueToken(profile, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = auth.ParseToken(raw, testSecret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseTokenRejectsUnsignedAlg(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "ada@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ParseToken(raw, testSecret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
