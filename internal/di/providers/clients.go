package providers

import (
	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/boundary"
	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metadata/clubsite"
	"github.com/rugbymap/rugbymap/internal/metadata/nominatim"
	"github.com/rugbymap/rugbymap/internal/store"
)

// ProvideProfileClient provides the club profile page client.
func ProvideProfileClient(i do.Injector) (*clubsite.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return clubsite.New(clubsite.Options{
		BaseURL:   cfg.Addresses.ProfileBaseURL,
		UserAgent: cfg.Addresses.UserAgent,
		Timeout:   cfg.Addresses.Timeout,
	}, log.Component("clubsite"))
}

// ProvideGeocodeClient provides the Nominatim search client.
func ProvideGeocodeClient(i do.Injector) (*nominatim.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return nominatim.New(nominatim.Options{
		Endpoint:     cfg.Geocoding.Endpoint,
		UserAgent:    cfg.Geocoding.UserAgent,
		CountryCodes: cfg.Geocoding.CountryCodes,
		Timeout:      cfg.Geocoding.Timeout,
	}, log.Component("nominatim")), nil
}

// ProvideBoundaryDownloader provides the ONS boundary downloader.
func ProvideBoundaryDownloader(i do.Injector) (*boundary.Downloader, error) {
	log := do.MustInvoke[*logger.Logger](i)

	return boundary.NewDownloader(boundary.DownloadOptions{
		Writer: store.RenameWriter{},
	}, log.Component("boundary")), nil
}
