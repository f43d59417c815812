// Package google adapts a Google Sheets spreadsheet to the tabular store
// port. Each sheet is one table: row 1 holds headers, every following row is
// a record.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"pocketfin/internal/tabular"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64 // sheet title -> numeric sheetId, for row deletes
}

var _ tabular.Store = (*Client)(nil)

// NewFromEnv creates a Sheets-backed store using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ScanAll(ctx context.Context, table string) (tabular.Table, error) {
	values, err := c.readAll(ctx, table)
	if err != nil {
		return tabular.Table{}, err
	}
	if len(values) == 0 {
		return tabular.Table{}, fmt.Errorf("sheet %s: empty, no header row", table)
	}
	headers := toStrings(values[0])
	out := tabular.Table{Name: table, Headers: headers}
	for _, raw := range values[1:] {
		cols := toStrings(raw)
		row := make(tabular.Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(cols) {
				row[h] = cols[i]
			} else {
				row[h] = ""
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (c *Client) AppendRow(ctx context.Context, table string, row tabular.Row) error {
	headers, err := c.headers(ctx, table)
	if err != nil {
		return err
	}
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = row[h]
	}
	rng := fmt.Sprintf("%s!A1:%s1", table, columnLetter(len(headers)))
	vr := &gsheet.ValueRange{Values: [][]any{cells}}
	// RAW keeps "2026-01" as literal text; USER_ENTERED would let Sheets
	// reinterpret it as a date and break month filtering on the read path.
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	slog.DebugContext(ctx, "Appended row", "sheet", table, "id", row[tabular.IDColumn])
	return nil
}

func (c *Client) UpdateRowByID(ctx context.Context, table, id string, patch tabular.Row) (tabular.Row, bool, error) {
	values, err := c.readAll(ctx, table)
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, fmt.Errorf("sheet %s: empty, no header row", table)
	}
	headers := toStrings(values[0])
	idIdx := indexOf(headers, tabular.IDColumn)
	if idIdx < 0 {
		return nil, false, fmt.Errorf("sheet %s: missing column %q", table, tabular.IDColumn)
	}
	for r := 1; r < len(values); r++ {
		cols := toStrings(values[r])
		if safeGet(cols, idIdx) != id {
			continue
		}
		cells := make([]any, len(headers))
		merged := make(tabular.Row, len(headers))
		for i, h := range headers {
			v := safeGet(cols, i)
			if pv, ok := patch[h]; ok {
				v = pv
			}
			cells[i] = v
			if h != "" {
				merged[h] = v
			}
		}
		rng := fmt.Sprintf("%s!A%d:%s%d", table, r+1, columnLetter(len(headers)), r+1)
		vr := &gsheet.ValueRange{Values: [][]any{cells}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return nil, false, fmt.Errorf("update %s row %d: %w", table, r+1, err)
		}
		return merged, true, nil
	}
	return nil, false, nil
}

func (c *Client) DeleteRowByID(ctx context.Context, table, id string) (bool, error) {
	values, err := c.readAll(ctx, table)
	if err != nil {
		return false, err
	}
	if len(values) == 0 {
		return false, nil
	}
	headers := toStrings(values[0])
	idIdx := indexOf(headers, tabular.IDColumn)
	if idIdx < 0 {
		return false, fmt.Errorf("sheet %s: missing column %q", table, tabular.IDColumn)
	}
	for r := 1; r < len(values); r++ {
		if safeGet(toStrings(values[r]), idIdx) != id {
			continue
		}
		sheetID, err := c.sheetID(ctx, table)
		if err != nil {
			return false, err
		}
		req := &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheet.Request{{
				DeleteDimension: &gsheet.DeleteDimensionRequest{
					Range: &gsheet.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "ROWS",
						StartIndex: int64(r),
						EndIndex:   int64(r + 1),
					},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return false, fmt.Errorf("delete %s row %d: %w", table, r+1, err)
		}
		return true, nil
	}
	return false, nil
}

func (c *Client) readAll(ctx context.Context, table string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A1:Z", table)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		// The API reports a nonexistent sheet as an unparseable range.
		if strings.Contains(err.Error(), "Unable to parse range") {
			return nil, fmt.Errorf("%s: %w", table, tabular.ErrTableMissing)
		}
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) headers(ctx context.Context, table string) ([]string, error) {
	rng := fmt.Sprintf("%s!1:1", table)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if strings.Contains(err.Error(), "Unable to parse range") {
			return nil, fmt.Errorf("%s: %w", table, tabular.ErrTableMissing)
		}
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("sheet %s: empty, no header row", table)
	}
	return toStrings(resp.Values[0]), nil
}

// sheetID resolves the numeric id DeleteDimension needs; titles are cached
// for the client's lifetime since sheets are not renamed at runtime.
func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[title]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("spreadsheet metadata: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("%s: %w", title, tabular.ErrTableMissing)
	}
	return id, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if v == target {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// columnLetter converts a 1-based column count to its A1-notation letter.
func columnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
