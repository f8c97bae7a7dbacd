package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Имя cookie с зашифрованным состоянием сессии.
const StateCookieName = "sc_state"

// Codec шифрует состояние сессии AES-256-GCM.
type Codec struct {
	gcm cipher.AEAD
}

// NewCodec создаёт Codec. key — base64 32-байтового ключа или произвольная
// строка (хешируется SHA-256). Пустой key — случайный ключ, сессии
// не переживают рестарт.
func NewCodec(key string) (*Codec, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("ошибка генерации ключа сессии: %w", err)
		}
	} else {
		var err error
		keyBytes, err = base64.StdEncoding.DecodeString(key)
		if err != nil || len(keyBytes) != 32 {
			h := sha256.Sum256([]byte(key))
			keyBytes = h[:]
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return &Codec{gcm: gcm}, nil
}

// Encrypt шифрует значения и возвращает base64 (nonce + ciphertext).
func (c *Codec) Encrypt(values map[string]string) (string, error) {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	ciphertext := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt расшифровывает значение cookie.
func (c *Codec) Decrypt(encrypted string) (map[string]string, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования base64: %w", err)
	}

	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("зашифрованные данные слишком короткие")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка дешифрования сессии: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сессии: %w", err)
	}
	return values, nil
}

// CookieStorage хранит состояние сессии в зашифрованном cookie ответа.
// Каждое изменение перезаписывает cookie.
type CookieStorage struct {
	mu     sync.Mutex
	codec  *Codec
	w      http.ResponseWriter
	values map[string]string
	secure bool
	ttl    time.Duration
}

// newCookieStorage читает cookie запроса. Нерасшифровываемый cookie
// считается отсутствующим.
func newCookieStorage(codec *Codec, w http.ResponseWriter, r *http.Request, secure bool, ttl time.Duration) *CookieStorage {
	values := map[string]string{}
	if c, err := r.Cookie(StateCookieName); err == nil && c.Value != "" {
		if decoded, err := codec.Decrypt(c.Value); err == nil {
			values = decoded
		}
	}
	return &CookieStorage{codec: codec, w: w, values: values, secure: secure, ttl: ttl}
}

func (s *CookieStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *CookieStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.writeLocked()
}

func (s *CookieStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return s.writeLocked()
}

func (s *CookieStorage) writeLocked() error {
	cookie := &http.Cookie{
		Name:     StateCookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if len(s.values) == 0 {
		cookie.MaxAge = -1
	} else {
		encrypted, err := s.codec.Encrypt(maps.Clone(s.values))
		if err != nil {
			return err
		}
		cookie.Value = encrypted
		cookie.MaxAge = int(s.ttl.Seconds())
	}
	replaceCookie(s.w, cookie)
	return nil
}

// replaceCookie устанавливает cookie, удаляя ранее выставленный
// в этом ответе cookie с тем же именем.
func replaceCookie(w http.ResponseWriter, cookie *http.Cookie) {
	header := w.Header()
	prefix := cookie.Name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	http.SetCookie(w, cookie)
}
