package feishu

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"resty.dev/v3"
)

// Record is one row of a Bitable table. Field values keep the shapes the
// API returns: text fields arrive as lists of tagged items.
type Record struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// RecordUpdate names a record and the fields to write into it.
type RecordUpdate struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`
}

// Config holds the settings for a table client.
type Config struct {
	AppID      string
	AppSecret  string
	AppToken   string
	TableID    string
	BaseURL    string
	PriceField string
	Logger     *slog.Logger
}

// Client talks to one Bitable table. Every method obtains a valid tenant
// access token first; token refresh happens lazily inside the token source.
type Client struct {
	appToken   string
	tableID    string
	priceField string
	tokens     *tokenSource
	client     *resty.Client
	log        *slog.Logger
}

// New creates a table client.
func New(cfg Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		appToken:   cfg.AppToken,
		tableID:    cfg.TableID,
		priceField: cfg.PriceField,
		tokens:     newTokenSource(cfg.AppID, cfg.AppSecret, client),
		client:     client,
		log:        log,
	}
}

func (c *Client) tablePath(suffix string) string {
	return fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records%s", c.appToken, c.tableID, suffix)
}

type searchResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items []Record `json:"items"`
	} `json:"data"`
}

type recordResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Record Record `json:"record"`
	} `json:"data"`
}

type recordsResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Records []Record `json:"records"`
	} `json:"data"`
}

type statusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SearchRecords returns the table's rows. Filter and field projection are
// both optional; passing neither returns every row with every field.
func (c *Client) SearchRecords(ctx context.Context, filter map[string]any, fields []string) ([]Record, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if filter != nil {
		body["filter"] = filter
	}
	if len(fields) > 0 {
		body["field_names"] = fields
	}

	var result searchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(body).
		SetResult(&result).
		Post(c.tablePath("/search"))

	if err != nil {
		return nil, &TransportError{Op: "search records", Cause: err}
	}
	if !resp.IsSuccess() {
		return nil, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return nil, newAPIError(result.Code, result.Msg)
	}

	return result.Data.Items, nil
}

// AddRecord creates a single row.
func (c *Client) AddRecord(ctx context.Context, fields map[string]any) (Record, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return Record{}, err
	}

	var result recordResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(map[string]any{"fields": fields}).
		SetResult(&result).
		Post(c.tablePath(""))

	if err != nil {
		return Record{}, &TransportError{Op: "add record", Cause: err}
	}
	if !resp.IsSuccess() {
		return Record{}, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return Record{}, newAPIError(result.Code, result.Msg)
	}

	return result.Data.Record, nil
}

// BatchAddRecords creates many rows in one call.
func (c *Client) BatchAddRecords(ctx context.Context, fieldSets []map[string]any) ([]Record, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]map[string]any, 0, len(fieldSets))
	for _, fields := range fieldSets {
		records = append(records, map[string]any{"fields": fields})
	}

	var result recordsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(map[string]any{"records": records}).
		SetResult(&result).
		Post(c.tablePath("/batch_create"))

	if err != nil {
		return nil, &TransportError{Op: "batch add records", Cause: err}
	}
	if !resp.IsSuccess() {
		return nil, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return nil, newAPIError(result.Code, result.Msg)
	}

	return result.Data.Records, nil
}

// UpdateRecord writes fields into a single row. API rejections carry a
// hint for the known failure codes; a failed HTTP call is reported as a
// TransportError instead.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) (Record, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return Record{}, err
	}

	var result recordResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(map[string]any{"fields": fields}).
		SetResult(&result).
		Put(c.tablePath("/" + recordID))

	if err != nil {
		return Record{}, &TransportError{Op: "update record", Cause: err}
	}
	if !resp.IsSuccess() {
		return Record{}, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return Record{}, newAPIError(result.Code, result.Msg)
	}

	return result.Data.Record, nil
}

// BatchUpdateRecords updates many rows in one call. The call either
// succeeds or fails as a unit; the API gives no partial-success signal.
func (c *Client) BatchUpdateRecords(ctx context.Context, updates []RecordUpdate) ([]Record, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var result recordsResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetBody(map[string]any{"records": updates}).
		SetResult(&result).
		Post(c.tablePath("/batch_update"))

	if err != nil {
		return nil, &TransportError{Op: "batch update records", Cause: err}
	}
	if !resp.IsSuccess() {
		return nil, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return nil, newAPIError(result.Code, result.Msg)
	}

	return result.Data.Records, nil
}

// DeleteRecord removes a single row.
func (c *Client) DeleteRecord(ctx context.Context, recordID string) (bool, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	var result statusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetResult(&result).
		Delete(c.tablePath("/" + recordID))

	if err != nil {
		return false, &TransportError{Op: "delete record", Cause: err}
	}
	if !resp.IsSuccess() {
		return false, newAPIError(resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return false, newAPIError(result.Code, result.Msg)
	}

	return true, nil
}

// BatchUpdateByCode writes each code's price into all of its rows. Each
// code is attempted as one batch update first; if that fails for any
// reason, every row of that code is retried individually and counted on
// its own. A failing code never aborts the remaining codes. Codes with no
// price are skipped. Returns cumulative updated/failed row counts.
func (c *Client) BatchUpdateByCode(ctx context.Context, codeRecords map[string][]string, codePrices map[string]float64) (updated, failed int) {
	codes := make([]string, 0, len(codeRecords))
	for code := range codeRecords {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		price, ok := codePrices[code]
		if !ok {
			c.log.Info("no price for code, skipping", "code", code)
			continue
		}

		recordIDs := codeRecords[code]
		updates := make([]RecordUpdate, 0, len(recordIDs))
		for _, id := range recordIDs {
			updates = append(updates, RecordUpdate{
				RecordID: id,
				Fields:   map[string]any{c.priceField: price},
			})
		}

		if _, err := c.BatchUpdateRecords(ctx, updates); err != nil {
			c.log.Warn("batch update failed, retrying rows individually",
				"code", code, "rows", len(recordIDs), "error", err)
			for _, id := range recordIDs {
				if _, err := c.UpdateRecord(ctx, id, map[string]any{c.priceField: price}); err != nil {
					failed++
					c.log.Warn("record update failed", "code", code, "record_id", id, "error", err)
				} else {
					updated++
				}
			}
			continue
		}

		updated += len(recordIDs)
		c.log.Info("batch updated", "code", code, "rows", len(recordIDs))
	}

	return updated, failed
}
