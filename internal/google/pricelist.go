package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

// PriceListSheet mirrors the flat price list into one sheet of a spreadsheet.
type PriceListSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
}

func NewPriceListSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*PriceListSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newPriceListSheet(srv, spreadsheetID, sheetName), nil
}

func newPriceListSheet(srv *sheets.Service, spreadsheetID, sheetName string) *PriceListSheet {
	if sheetName == "" {
		sheetName = "Price List"
	}
	return &PriceListSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}
}

// ServiceAccountEmail возвращает email сервисного аккаунта, которому нужно открыть доступ к таблице
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *PriceListSheet) cell(ref string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheetName, "'", "''"), ref)
}

// TestConnection проверяет подключение к таблице
func (s *PriceListSheet) TestConnection(ctx context.Context) error {
	if _, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.cell("A1")).Context(ctx).Do(); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func priceListValues(snap models.Snapshot, at time.Time) [][]interface{} {
	rows := pricing.Rows(snap)
	width := pricing.MaxCells(rows)

	values := make([][]interface{}, 0, len(rows)+2)
	values = append(values, []interface{}{"Updated " + at.Format("02.01.2006 15:04")})
	values = append(values, toRow(pricing.Header(width)))
	for _, row := range rows {
		values = append(values, toRow(row.Values(width)))
	}
	return values
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// ReplacePriceList полностью перезаписывает лист с прайсом
func (s *PriceListSheet) ReplacePriceList(ctx context.Context, snap models.Snapshot) error {
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.cell("A1:Z"), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear price list sheet: %w", err)
	}

	valueRange := &sheets.ValueRange{Values: priceListValues(snap, s.now())}
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.cell("A1"), valueRange).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update price list sheet: %w", err)
	}
	return nil
}
