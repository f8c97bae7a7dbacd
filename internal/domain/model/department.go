package model

import (
	"encoding/json"
	"time"
)

// Department — отдел, владеющий наборами данных.
type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"department_name"`
	CreatedAt Timestamp `json:"created_at"`
}

// Timestamp — время создания в формате remote API.
// Принимает {"_seconds": N}, {"seconds": N}, RFC 3339 строку или null.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON разбирает все поддерживаемые представления времени.
// Нераспознанное значение оставляет нулевое время без ошибки.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed
		}
		return nil
	}

	var obj struct {
		UnderscoreSeconds int64 `json:"_seconds"`
		Seconds           int64 `json:"seconds"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	sec := obj.UnderscoreSeconds
	if sec == 0 {
		sec = obj.Seconds
	}
	if sec != 0 {
		t.Time = time.Unix(sec, 0).UTC()
	}
	return nil
}

// MarshalJSON сериализует время как {"_seconds": N} или null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]int64{"_seconds": t.Unix()})
}

// Display возвращает время в формате layout или notAvailable для пустого значения.
func (t Timestamp) Display(layout, notAvailable string) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.Time.Format(layout)
}
