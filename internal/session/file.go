package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStorage хранит состояние сессии терминального клиента в YAML-файле
// с правами 0600.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage создаёт Storage поверх файла path. Файл создаётся при первой записи.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// DefaultFilePath возвращает путь к файлу сессии в каталоге конфигурации пользователя.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sheetsctl", "session.yaml"), nil
}

type fileState struct {
	Values map[string]string `yaml:"values"`
}

// load читает файл. Отсутствующий или повреждённый файл — пустое состояние.
func (s *FileStorage) load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]string{}
	}
	var st fileState
	if err := yaml.Unmarshal(data, &st); err != nil || st.Values == nil {
		return map[string]string{}
	}
	return st.Values
}

func (s *FileStorage) save(values map[string]string) error {
	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("удаление %s: %w", s.path, err)
		}
		return nil
	}

	data, err := yaml.Marshal(fileState{Values: values})
	if err != nil {
		return fmt.Errorf("сериализация сессии: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("создание каталога: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("запись %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("замена %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.load()[key]
	return v, ok, nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	values[key] = value
	return s.save(values)
}

func (s *FileStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.load()
	for _, k := range keys {
		delete(values, k)
	}
	return s.save(values)
}
