// Пакет session — хранилище сессии пользователя консоли: токен и профиль,
// сохраняемые вместе в подключаемом Storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// Ключи Storage.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyRefreshToken = "refresh_token"
)

// ErrNoSession — операция требует активной сессии.
var ErrNoSession = errors.New("сессия отсутствует")

// Storage — key/value хранилище состояния одной сессии.
type Storage interface {
	// Get возвращает значение ключа; ok == false если ключа нет.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set сохраняет значение ключа.
	Set(ctx context.Context, key, value string) error
	// Delete удаляет ключи; отсутствующие ключи игнорируются.
	Delete(ctx context.Context, keys ...string) error
}

// SignOuter завершает сессию у провайдера идентификации.
type SignOuter interface {
	SignOut(ctx context.Context, refreshToken string) error
}

// Store — сессия: токен и профиль, устанавливаемые и очищаемые вместе.
// Безопасен для конкурентного использования.
type Store struct {
	mu           sync.RWMutex
	id           string
	storage      Storage
	signOuter    SignOuter
	logger       *slog.Logger
	token        string
	refreshToken string
	profile      *model.User
}

// NewStore создаёт Store. signOuter может быть nil.
func NewStore(id string, storage Storage, signOuter SignOuter, logger *slog.Logger) *Store {
	return &Store{
		id:        id,
		storage:   storage,
		signOuter: signOuter,
		logger:    logger.With(slog.String("component", "session")),
	}
}

// ID возвращает идентификатор сессии.
func (s *Store) ID() string {
	return s.id
}

// Hydrate восстанавливает сессию из Storage. Повреждённый профиль
// (некорректный JSON или пустой uid) удаляется вместе с токеном,
// сессия остаётся неаутентифицированной. Ошибкой считается только сбой Storage.
func (s *Store) Hydrate(ctx context.Context) error {
	token, hasToken, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		return fmt.Errorf("чтение токена: %w", err)
	}
	raw, hasUser, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		return fmt.Errorf("чтение профиля: %w", err)
	}
	refresh, _, err := s.storage.Get(ctx, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("чтение refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()

	if !hasToken && !hasUser {
		return nil
	}

	profile, perr := decodeProfile(raw)
	if !hasToken || token == "" || !hasUser || perr != nil {
		s.logger.Debug("Сохранённая сессия повреждена, удаляется",
			slog.Bool("has_token", hasToken),
			slog.Bool("has_user", hasUser),
			slog.Any("error", perr),
		)
		if err := s.storage.Delete(ctx, KeyToken, KeyUser, KeyRefreshToken); err != nil {
			s.logger.Warn("Ошибка удаления повреждённой сессии", slog.String("error", err.Error()))
		}
		return nil
	}

	s.token = token
	s.refreshToken = refresh
	s.profile = profile
	return nil
}

func decodeProfile(raw string) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("профиль без uid")
	}
	return &u, nil
}

// Login безусловно заменяет сессию и сохраняет токены и профиль.
func (s *Store) Login(ctx context.Context, token, refreshToken string, profile model.User) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("сериализация профиля: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("сохранение токена: %w", err)
	}
	if err := s.storage.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("сохранение профиля: %w", err)
	}
	if refreshToken != "" {
		if err := s.storage.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
			return fmt.Errorf("сохранение refresh token: %w", err)
		}
	} else if err := s.storage.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("удаление refresh token: %w", err)
	}

	s.token = token
	s.refreshToken = refreshToken
	p := profile
	s.profile = &p
	return nil
}

// Logout завершает сессию у провайдера и при любом исходе очищает
// токен и профиль в памяти и в Storage. Ошибка провайдера возвращается
// только для логирования.
func (s *Store) Logout(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		s.clearLocked()
		if derr := s.storage.Delete(ctx, KeyToken, KeyUser, KeyRefreshToken); derr != nil {
			err = errors.Join(err, fmt.Errorf("очистка сессии: %w", derr))
		}
	}()

	if s.signOuter != nil && s.refreshToken != "" {
		if serr := s.signOuter.SignOut(ctx, s.refreshToken); serr != nil {
			return fmt.Errorf("выход у провайдера: %w", serr)
		}
	}
	return nil
}

// UpdateProfile применяет частичное обновление к профилю и сохраняет его.
// Без активной сессии ничего не делает.
func (s *Store) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return nil
	}
	updated := patch.Apply(*s.profile)
	raw, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("сериализация профиля: %w", err)
	}
	if err := s.storage.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("сохранение профиля: %w", err)
	}
	s.profile = &updated
	return nil
}

// SetToken заменяет токены после обновления, профиль не меняется.
func (s *Store) SetToken(ctx context.Context, token, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return ErrNoSession
	}
	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("сохранение токена: %w", err)
	}
	if refreshToken != "" {
		if err := s.storage.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
			return fmt.Errorf("сохранение refresh token: %w", err)
		}
		s.refreshToken = refreshToken
	}
	s.token = token
	return nil
}

// Token возвращает текущий токен идентификации.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// RefreshToken возвращает текущий refresh token.
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Profile возвращает копию профиля или nil без сессии.
func (s *Store) Profile() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Authenticated сообщает, есть ли активная сессия.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.profile != nil
}

// discard очищает сессию без выхода у провайдера.
func (s *Store) discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return s.storage.Delete(ctx, KeyToken, KeyUser, KeyRefreshToken)
}

func (s *Store) clearLocked() {
	s.token = ""
	s.refreshToken = ""
	s.profile = nil
}
