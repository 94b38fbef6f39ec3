package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const defaultPrimaryColor = "#ec4899"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// SiteSettings is the branding shown on every page.
type SiteSettings struct {
	SiteName     string `yaml:"site_name"`
	PrimaryColor string `yaml:"primary_color"`
	LogoURL      string `yaml:"logo_url"`
	ContactEmail string `yaml:"contact_email"`
}

// DefaultSiteSettings returns the branding used when no file is configured.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		SiteName:     "PropPulse",
		PrimaryColor: defaultPrimaryColor,
	}
}

// LoadSiteSettings reads branding from a YAML file. An empty path returns
// the defaults. Missing fields fall back to the defaults.
func LoadSiteSettings(path string) (SiteSettings, error) {
	s := DefaultSiteSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("reading site settings: %w", err)
	}

	var fromFile SiteSettings
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return SiteSettings{}, fmt.Errorf("parsing site settings: %w", err)
	}

	if fromFile.SiteName != "" {
		s.SiteName = fromFile.SiteName
	}

	if fromFile.PrimaryColor != "" {
		// The colour lands in a style attribute; html/template would
		// neutralise anything odd, but reject it early with a clear error.
		if !hexColor.MatchString(fromFile.PrimaryColor) {
			return SiteSettings{}, fmt.Errorf("primary_color %q is not a hex colour", fromFile.PrimaryColor)
		}

		s.PrimaryColor = fromFile.PrimaryColor
	}

	s.LogoURL = fromFile.LogoURL
	s.ContactEmail = fromFile.ContactEmail

	return s, nil
}
