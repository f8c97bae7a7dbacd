package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)

	enc, err := c.Encrypt(map[string]string{KeyToken: "T", KeyUser: `{"uid":"1"}`})
	require.NoError(t, err)

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "T", dec[KeyToken])
}

func TestCodec_RejectsForeignKey(t *testing.T) {
	a, err := NewCodec("first-secret")
	require.NoError(t, err)
	b, err := NewCodec("second-secret")
	require.NoError(t, err)

	enc, err := a.Encrypt(map[string]string{"k": "v"})
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	assert.Error(t, err)

	_, err = a.Decrypt("%%%")
	assert.Error(t, err)

	_, err = a.Decrypt("AAAA")
	assert.Error(t, err)
}

func TestCookieStorage_WritesSingleCookie(t *testing.T) {
	codec, err := NewCodec("secret")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s := newCookieStorage(codec, rec, req, true, time.Hour)

	require.NoError(t, s.Set(t.Context(), KeyToken, "T"))
	require.NoError(t, s.Set(t.Context(), KeyUser, `{"uid":"1"}`))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, StateCookieName, cookies[0].Name)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)

	// следующий запрос читает сохранённое состояние
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	s2 := newCookieStorage(codec, httptest.NewRecorder(), req2, true, time.Hour)

	v, ok, err := s2.Get(t.Context(), KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"uid":"1"}`, v)
}

func TestCookieStorage_DeleteExpiresCookie(t *testing.T) {
	codec, err := NewCodec("secret")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s := newCookieStorage(codec, rec, httptest.NewRequest(http.MethodGet, "/", nil), false, time.Hour)
	require.NoError(t, s.Set(t.Context(), KeyToken, "T"))
	require.NoError(t, s.Delete(t.Context(), KeyToken))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCookieStorage_IgnoresGarbageCookie(t *testing.T) {
	codec, err := NewCodec("secret")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: StateCookieName, Value: "garbage"})
	s := newCookieStorage(codec, httptest.NewRecorder(), req, false, time.Hour)

	_, ok, err := s.Get(t.Context(), KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
