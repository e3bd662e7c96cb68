package extractor

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockly/internal/model"
)

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}

func TestGetOwnerFromHeader(t *testing.T) {
	e := New("")

	owner, err := e.GetOwner(header(UserID, "user-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)

	_, err = e.GetOwner(header(UserID, "user-1", Status, StatusLoading))
	assert.ErrorIs(t, err, model.ErrIdentityNotLoaded)

	_, err = e.GetOwner(header(UserID, "user-1", Status, StatusSignedOut))
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	_, err = e.GetOwner(header())
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestGetOwnerFromToken(t *testing.T) {
	secret := "super-secret"
	e := New(secret)

	token, err := GenerateToken("user-7", []byte(secret), time.Hour)
	require.NoError(t, err)

	owner, err := e.GetOwner(header(Authorization, "Bearer "+token))
	require.NoError(t, err)
	assert.Equal(t, "user-7", owner)

	// The header identity is ignored once tokens are required.
	_, err = e.GetOwner(header(UserID, "user-1"))
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	expired, err := GenerateToken("user-7", []byte(secret), -time.Minute)
	require.NoError(t, err)
	_, err = e.GetOwner(header(Authorization, "Bearer "+expired))
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	forged, err := GenerateToken("user-7", []byte("other"), time.Hour)
	require.NoError(t, err)
	_, err = e.GetOwner(header(Authorization, "Bearer "+forged))
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestHeaders(t *testing.T) {
	e := New("")
	h := header(XForwardedFor, "10.0.0.1", XForwardedFor, "10.0.0.2", RoleID, "admin", Authorization, "Basic abc")

	assert.Equal(t, "10.0.0.1,10.0.0.2", e.GetXForwardedFor(h))
	assert.Equal(t, []string{"admin"}, e.GetRoleIDs(h))
	assert.Empty(t, e.GetToken(h))
	assert.Equal(t, "token", e.GetToken(header(Authorization, "Bearer token")))
}
