package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// NewDataset — запрос создания набора данных.
type NewDataset struct {
	Name       string   `json:"database_name"`
	Department string   `json:"department_name"`
	CreatedBy  string   `json:"created_by"`
	Password   string   `json:"database_password"`
	Columns    []string `json:"columns"`
}

// AppendRows — запрос добавления строк в набор.
type AppendRows struct {
	SheetID string     `json:"sheet_id"`
	TabName string     `json:"tab_name"`
	Rows    [][]string `json:"rows"`
}

// UploadCSV — загрузка CSV-файла в набор.
type UploadCSV struct {
	SheetID      string
	DatabaseName string
	FileName     string
	Content      io.Reader
}

// ListDatasets возвращает каталог наборов данных в порядке API.
// GET /api/database/databases
func (c *Client) ListDatasets(ctx context.Context, token string) ([]model.Dataset, error) {
	var resp struct {
		Sheets []model.Dataset `json:"sheets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/database/databases", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Sheets == nil {
		return []model.Dataset{}, nil
	}
	return resp.Sheets, nil
}

// Rows возвращает строки набора с сохранением порядка ключей.
// GET /api/database/{sheet_id}
func (c *Client) Rows(ctx context.Context, token, sheetID string) ([]model.Row, error) {
	var rows []model.Row
	path := "/api/database/" + url.PathEscape(sheetID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		return []model.Row{}, nil
	}
	return rows, nil
}

// ConfirmPassword проверяет пароль набора на стороне сервера.
// POST /api/database/confirm-password; несовпадение — *APIError.
func (c *Client) ConfirmPassword(ctx context.Context, token, sheetID, password string) error {
	body := map[string]string{
		"sheet_id":       sheetID,
		"input_password": password,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/database/confirm-password", token, body, nil)
}

// CreateDataset создаёт набор данных.
// POST /api/database/databases
func (c *Client) CreateDataset(ctx context.Context, token string, req NewDataset) error {
	return c.doJSON(ctx, http.MethodPost, "/api/database/databases", token, req, nil)
}

// AppendRows добавляет строки в набор.
// POST /api/database/append-rows
func (c *Client) AppendRows(ctx context.Context, token string, req AppendRows) error {
	return c.doJSON(ctx, http.MethodPost, "/api/database/append-rows", token, req, nil)
}

// UploadCSV загружает CSV-файл в набор (multipart/form-data).
// POST /api/database/upload-csv
func (c *Client) UploadCSV(ctx context.Context, token string, req UploadCSV) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", req.FileName)
	if err != nil {
		return fmt.Errorf("формирование multipart: %w", err)
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return fmt.Errorf("чтение CSV: %w", err)
	}
	if err := mw.WriteField("sheet_id", req.SheetID); err != nil {
		return fmt.Errorf("формирование multipart: %w", err)
	}
	if err := mw.WriteField("database_name", req.DatabaseName); err != nil {
		return fmt.Errorf("формирование multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("формирование multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/database/upload-csv", &buf)
	if err != nil {
		return fmt.Errorf("создание запроса UploadCSV: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(httpReq, token, nil)
}
