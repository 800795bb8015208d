package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Error is used for constant errors.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

const (
	ErrInvalidConfig  Error = "invalid config"
	ErrNoPackage      Error = "no package.json found at path"
	ErrNoProject      Error = "project directory not found"
	ErrNoTemplateName Error = "templateName must be a non-empty string"
)

// Defaults applied by Normalize.
const (
	DefaultProxyCacheTTL  = 600000 // milliseconds
	DefaultOutDir         = "dist"
	DefaultSyncBackupsDir = "backups"

	// AccessTokenEnv supplies personalAccessToken when no source sets it.
	AccessTokenEnv = "MI_ACCESS_TOKEN"
)

// Config is the project configuration as written by the user. Pointer fields
// distinguish "absent" from the zero value.
type Config struct {
	BackendBaseURL       *string `json:"backendBaseURL,omitempty"`
	PortalPageID         *int    `json:"portalPageId,omitempty"`
	AppID                *int    `json:"appId,omitempty"`
	EnableProxyCache     *bool   `json:"enableProxyCache,omitempty"`
	ProxyCacheTTL        *int    `json:"proxyCacheTTL,omitempty"`
	TemplateLess         *bool   `json:"templateLess,omitempty"`
	V7Features           *bool   `json:"v7Features,omitempty"`
	DisableSSLValidation *bool   `json:"disableSSLValidation,omitempty"`
	MiHudLess            *bool   `json:"miHudLess,omitempty"`
	OutDir               *string `json:"outDir,omitempty"`
	SyncBackupsDir       *string `json:"syncBackupsDir,omitempty"`
	PersonalAccessToken  *string `json:"personalAccessToken,omitempty"`

	// Either a boolean or an object; see options.go.
	DistZip           json.RawMessage `json:"distZip,omitempty"`
	ImageOptimizer    json.RawMessage `json:"imageOptimizer,omitempty"`
	IntegrateMiTopBar json.RawMessage `json:"integrateMiTopBar,omitempty"`
}

// ConfigFromMap decodes an opaque object, as produced by any config loader,
// into a Config. Unknown keys are ignored.
func ConfigFromMap(m map[string]interface{}) (Config, error) {
	var c Config
	if len(m) == 0 {
		return c, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return c, err
	}
	if err = json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// NormalizedConfig is the effective configuration with defaults applied and
// every field validated.
type NormalizedConfig struct {
	TemplateName         string `json:"templateName" yaml:"templateName"`
	BackendBaseURL       string `json:"backendBaseURL,omitempty" yaml:"backendBaseURL,omitempty"`
	PortalPageID         int    `json:"portalPageId,omitempty" yaml:"portalPageId,omitempty"`
	EnableProxyCache     bool   `json:"enableProxyCache" yaml:"enableProxyCache"`
	ProxyCacheTTL        int    `json:"proxyCacheTTL" yaml:"proxyCacheTTL"`
	TemplateLess         bool   `json:"templateLess" yaml:"templateLess"`
	V7Features           bool   `json:"v7Features" yaml:"v7Features"`
	DisableSSLValidation bool   `json:"disableSSLValidation" yaml:"disableSSLValidation"`
	MiHudLess            bool   `json:"miHudLess" yaml:"miHudLess"`
	OutDir               string `json:"outDir" yaml:"outDir"`
	SyncBackupsDir       string `json:"syncBackupsDir" yaml:"syncBackupsDir"`
	PersonalAccessToken  string `json:"-" yaml:"-"`

	DistZip           *DistZip        `json:"distZip,omitempty" yaml:"distZip,omitempty"`
	ImageOptimizer    *ImageOptimizer `json:"imageOptimizer,omitempty" yaml:"imageOptimizer,omitempty"`
	IntegrateMiTopBar TopBar          `json:"integrateMiTopBar" yaml:"integrateMiTopBar"`
}

// Normalize validates raw and fills in defaults. The normalized value always
// wins: when both portalPageId and appId are set, portalPageId is used, and
// distZip, imageOptimizer and integrateMiTopBar are always in their expanded
// form.
func Normalize(raw Config, templateName string) (*NormalizedConfig, error) {
	if templateName == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, ErrNoTemplateName)
	}

	n := &NormalizedConfig{
		TemplateName:     templateName,
		EnableProxyCache: boolOr(raw.EnableProxyCache, true),
		ProxyCacheTTL:    DefaultProxyCacheTTL,
		TemplateLess:     boolOr(raw.TemplateLess, false),
		V7Features:       boolOr(raw.V7Features, false),
		MiHudLess:        boolOr(raw.MiHudLess, false),
		OutDir:           stringOr(raw.OutDir, DefaultOutDir),
		SyncBackupsDir:   stringOr(raw.SyncBackupsDir, DefaultSyncBackupsDir),

		DisableSSLValidation: boolOr(raw.DisableSSLValidation, false),
		PersonalAccessToken:  stringOr(raw.PersonalAccessToken, os.Getenv(AccessTokenEnv)),
	}

	if raw.BackendBaseURL != nil {
		if *raw.BackendBaseURL == "" {
			return nil, invalid("backendBaseURL must be a non-empty string if provided")
		}
		u, err := url.Parse(*raw.BackendBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid("backendBaseURL must be an absolute http(s) URL, got %q", *raw.BackendBaseURL)
		}
		n.BackendBaseURL = *raw.BackendBaseURL
	}

	if raw.PortalPageID != nil && *raw.PortalPageID <= 0 {
		return nil, invalid("portalPageId must be a positive number if provided")
	}
	if raw.AppID != nil && *raw.AppID <= 0 {
		return nil, invalid("appId must be a positive number if provided")
	}
	switch {
	case raw.PortalPageID != nil:
		n.PortalPageID = *raw.PortalPageID
	case raw.AppID != nil:
		n.PortalPageID = *raw.AppID
	}

	if raw.ProxyCacheTTL != nil {
		if *raw.ProxyCacheTTL <= 0 {
			return nil, invalid("proxyCacheTTL must be a positive number if provided")
		}
		n.ProxyCacheTTL = *raw.ProxyCacheTTL
	}

	var err error
	if n.DistZip, err = normalizeDistZip(raw.DistZip, templateName, n.OutDir); err != nil {
		return nil, err
	}
	if n.ImageOptimizer, err = normalizeImageOptimizer(raw.ImageOptimizer); err != nil {
		return nil, err
	}
	if n.IntegrateMiTopBar, err = normalizeTopBar(raw.IntegrateMiTopBar, n.MiHudLess); err != nil {
		return nil, err
	}

	return n, nil
}

// CacheTTL returns proxyCacheTTL as a duration.
func (n *NormalizedConfig) CacheTTL() time.Duration {
	return time.Duration(n.ProxyCacheTTL) * time.Millisecond
}

// BackendURL returns the parsed backendBaseURL, or nil when none is set.
func (n *NormalizedConfig) BackendURL() *url.URL {
	if n.BackendBaseURL == "" {
		return nil
	}
	u, _ := url.Parse(n.BackendBaseURL)
	return u
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
