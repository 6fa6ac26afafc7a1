package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/store"
)

const (
	onsServices     = "https://services1.arcgis.com/ESMARspQHYMw9BZ9/arcgis/rest/services"
	defaultPageSize = 2000
)

// Services returns the ONS FeatureServer layer for each boundary file at the
// given detail level.
func Services(detail string) map[string]string {
	itl3, itl3Layer := "ITL3_JAN_2025_UK_"+detail, "0"
	countries := "CTRY_DEC_2024_UK_" + detail
	switch detail {
	case "BGC", "BSC", "BUC":
		itl3, itl3Layer = itl3+"_V2", "1"
		countries = "Countries_December_2024_Boundaries_UK_" + detail
	}
	return map[string]string{
		"ITL_1.geojson":     onsServices + "/ITL1_JAN_2025_UK_" + detail + "/FeatureServer/0",
		"ITL_2.geojson":     onsServices + "/ITL2_JAN_2025_UK_" + detail + "/FeatureServer/0",
		"ITL_3.geojson":     onsServices + "/" + itl3 + "/FeatureServer/" + itl3Layer,
		"countries.geojson": onsServices + "/" + countries + "/FeatureServer/0",
	}
}

// DownloadOptions configures a Downloader.
type DownloadOptions struct {
	PageSize int
	// PageDelay is the pause between page requests.
	PageDelay time.Duration
	Timeout   time.Duration
	Writer    store.AtomicWriter
}

// Downloader fetches ArcGIS FeatureServer layers page by page.
type Downloader struct {
	http      *http.Client
	pageSize  int
	pageDelay time.Duration
	writer    store.AtomicWriter
	logger    *slog.Logger
}

// NewDownloader creates a Downloader.
func NewDownloader(opts DownloadOptions, log *slog.Logger) *Downloader {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Writer == nil {
		opts.Writer = store.RenameWriter{}
	}
	return &Downloader{
		http:      &http.Client{Timeout: opts.Timeout},
		pageSize:  opts.PageSize,
		pageDelay: opts.PageDelay,
		writer:    opts.Writer,
		logger:    logger.OrDiscard(log),
	}
}

// DownloadAll fetches every layer of Services(detail) into dir/detail.
func (d *Downloader) DownloadAll(ctx context.Context, dir, detail string) error {
	if !ValidDetail(detail) {
		return fmt.Errorf("unknown detail level %q", detail)
	}
	for file, service := range Services(detail) {
		if _, err := d.Download(ctx, service, filepath.Join(dir, detail, file)); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

// Download fetches every feature of the layer at serviceURL and writes them
// to path as one FeatureCollection. It returns the number of features.
func (d *Downloader) Download(ctx context.Context, serviceURL, path string) (int, error) {
	queryURL := serviceURL + "/query"

	var count struct {
		Count int `json:"count"`
	}
	if err := d.get(ctx, queryURL, url.Values{
		"where":           {"1=1"},
		"returnCountOnly": {"true"},
		"f":               {"json"},
	}, &count); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	d.logger.Info("downloading boundary layer", "path", path, "features", count.Count)

	fc := geojson.NewFeatureCollection()
	for offset := 0; offset < count.Count; {
		var page geojson.FeatureCollection
		if err := d.get(ctx, queryURL, url.Values{
			"where":             {"1=1"},
			"outFields":         {"*"},
			"f":                 {"geojson"},
			"outSR":             {"4326"},
			"resultOffset":      {strconv.Itoa(offset)},
			"resultRecordCount": {strconv.Itoa(d.pageSize)},
		}, &page); err != nil {
			return 0, fmt.Errorf("fetch page at %d: %w", offset, err)
		}
		if len(page.Features) == 0 {
			break
		}
		fc.Features = append(fc.Features, page.Features...)
		offset += len(page.Features)
		d.logger.Debug("boundary page", "downloaded", offset, "total", count.Count)

		if offset < count.Count && d.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(d.pageDelay):
			}
		}
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}
	if err := d.writer.WriteFile(path, data); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	d.logger.Info("boundary layer saved", "path", path, "features", len(fc.Features))
	return len(fc.Features), nil
}

func (d *Downloader) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
