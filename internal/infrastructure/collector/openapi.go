package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"GrantRadar/internal/collect"
	"GrantRadar/internal/domain"
)

const (
	schemaOption   = "schema"
	schemaKstartup = "kstartup"
	schemaSmes     = "smes"

	summaryLimit = 300
)

// OpenAPICollector pulls announcements from data.go.kr-style JSON
// services. The "schema" option selects the upstream field mapping.
type OpenAPICollector struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

var _ collect.Collector = (*OpenAPICollector)(nil)

// NewOpenAPICollector wires the shared retrying fetcher.
func NewOpenAPICollector(fetcher *Fetcher, logger *slog.Logger) *OpenAPICollector {
	return &OpenAPICollector{fetcher: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (o *OpenAPICollector) Name() string {
	return "openapi"
}

// Collect queries the service and maps each well-formed item to a
// posting. Items without a title are skipped.
func (o *OpenAPICollector) Collect(ctx context.Context, req collect.Request) ([]domain.Posting, error) {
	if req.ServiceKey == "" {
		return nil, fmt.Errorf("source %s: service key is not configured", req.SourceName)
	}

	schema := req.Options[schemaOption]
	if schema != schemaKstartup && schema != schemaSmes {
		return nil, fmt.Errorf("source %s: unknown openapi schema %q", req.SourceName, schema)
	}

	body, err := o.fetcher.Get(ctx, buildServiceURL(req, schema))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}

	switch schema {
	case schemaKstartup:
		return o.parseKstartup(body, req)
	default:
		return o.parseSmes(body, req)
	}
}

// buildServiceURL assembles the query string. Portal-issued keys come
// pre-encoded; decode first so the encoder does not double-escape them.
func buildServiceURL(req collect.Request, schema string) string {
	serviceKey := req.ServiceKey
	if decoded, err := url.QueryUnescape(serviceKey); err == nil {
		serviceKey = decoded
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	values := url.Values{}
	values.Set("serviceKey", serviceKey)
	if schema == schemaKstartup {
		values.Set("page", "1")
		values.Set("perPage", fmt.Sprint(limit))
		values.Set("returnType", "JSON")
	} else {
		values.Set("pageNo", "1")
		values.Set("numOfRows", fmt.Sprint(limit))
		values.Set("type", "json")
	}

	return req.ListURL + "?" + values.Encode()
}

// flexString tolerates upstream fields that switch between string and
// numeric JSON encodings.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = flexString(value)
		return nil
	}
	raw := string(data)
	if raw == "null" {
		raw = ""
	}
	*s = flexString(raw)
	return nil
}

func (s flexString) trimmed() string {
	return strings.TrimSpace(string(s))
}

type kstartupItem struct {
	Title        flexString `json:"biz_pbanc_nm"`
	Organization flexString `json:"pbanc_ntrp_nm"`
	Category     flexString `json:"supt_biz_clsfc"`
	StartDate    flexString `json:"pbanc_rcpt_bgng_dt"`
	EndDate      flexString `json:"pbanc_rcpt_end_dt"`
	Target       flexString `json:"aply_trgt"`
	URL          flexString `json:"detl_pg_url"`
	Summary      flexString `json:"pbanc_ctnt"`
	InProgress   flexString `json:"rcrt_prgs_yn"`
	Serial       flexString `json:"pbanc_sn"`
}

func (o *OpenAPICollector) parseKstartup(body []byte, req collect.Request) ([]domain.Posting, error) {
	var envelope struct {
		TotalCount int             `json:"totalCount"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("source %s: decode response: %w", req.SourceName, err)
	}

	var items []kstartupItem
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &items); err != nil {
			o.debug("items are not a list, skipping", "source", req.SourceName)
		}
	}

	postings := make([]domain.Posting, 0, len(items))
	for _, item := range items {
		title := item.Title.trimmed()
		if title == "" {
			continue
		}
		// Only announcements still accepting applications.
		if item.InProgress.trimmed() != "Y" {
			continue
		}

		pageURL := item.URL.trimmed()
		id := domain.DeriveID(title, pageURL)
		if serial := item.Serial.trimmed(); serial != "" {
			id = "kstartup_" + serial
		}

		postings = append(postings, domain.Posting{
			ID:           id,
			Title:        title,
			Organization: item.Organization.trimmed(),
			Category:     item.Category.trimmed(),
			StartDate:    domain.NormalizeDate(item.StartDate.trimmed()),
			EndDate:      domain.NormalizeDate(item.EndDate.trimmed()),
			Target:       item.Target.trimmed(),
			URL:          pageURL,
			Summary:      truncate(item.Summary.trimmed(), summaryLimit),
			Source:       req.SourceName,
		})
	}

	return postings, nil
}

type smesItem struct {
	ID           flexString `json:"anncId"`
	Title        flexString `json:"anncNm"`
	Organization flexString `json:"cntcInsttNm"`
	Category     flexString `json:"anncClssNm"`
	StartDate    flexString `json:"rcptBgngDt"`
	EndDate      flexString `json:"rcptEndDt"`
	Target       flexString `json:"trgtNm"`
	URL          flexString `json:"anncUrl"`
	Summary      flexString `json:"anncSumry"`
}

func (o *OpenAPICollector) parseSmes(body []byte, req collect.Request) ([]domain.Posting, error) {
	var envelope struct {
		Response struct {
			Body struct {
				Items struct {
					Item json.RawMessage `json:"item"`
				} `json:"items"`
			} `json:"body"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("source %s: decode response: %w", req.SourceName, err)
	}

	raw := envelope.Response.Body.Items.Item
	var items []smesItem
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			// Single-item responses collapse the list into one object.
			var single smesItem
			if err := json.Unmarshal(raw, &single); err == nil {
				items = []smesItem{single}
			} else {
				o.debug("unexpected items shape, skipping", "source", req.SourceName)
			}
		}
	}

	postings := make([]domain.Posting, 0, len(items))
	for _, item := range items {
		title := item.Title.trimmed()
		if title == "" {
			continue
		}

		pageURL := item.URL.trimmed()
		id := item.ID.trimmed()
		if id == "" {
			id = domain.DeriveID(title, pageURL)
		}

		postings = append(postings, domain.Posting{
			ID:           id,
			Title:        title,
			Organization: item.Organization.trimmed(),
			Category:     item.Category.trimmed(),
			StartDate:    domain.NormalizeDate(item.StartDate.trimmed()),
			EndDate:      domain.NormalizeDate(item.EndDate.trimmed()),
			Target:       item.Target.trimmed(),
			URL:          pageURL,
			Summary:      truncate(item.Summary.trimmed(), summaryLimit),
			Source:       req.SourceName,
		})
	}

	return postings, nil
}

func (o *OpenAPICollector) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
