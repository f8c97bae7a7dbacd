// errors.go — ошибки сервисного слоя.
package service

import "errors"

var (
	// ErrNothingToExport — набор не разблокирован или не выбран.
	ErrNothingToExport = errors.New("нет разблокированного набора для экспорта")
	// ErrExportFailed — ошибка кодирования документа экспорта.
	ErrExportFailed = errors.New("ошибка формирования экспорта")
)
