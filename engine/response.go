package engine

import (
	"encoding/base64"
	"strings"

	"github.com/webpeel/webpeel/fetch"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/simhash"
)

// BuildResponse turns a fetch result into the API response shape: title,
// fingerprint, screenshot encoding, and optionally the outbound links.
func BuildResponse(rawURL string, res *fetch.Result, cacheStatus string, withLinks bool) *models.PeelResponse {
	resp := &models.PeelResponse{
		Success:     true,
		URL:         rawURL,
		FinalURL:    res.FinalURL,
		StatusCode:  res.StatusCode,
		Content:     string(res.Body),
		ContentType: res.ContentType,
		Method:      res.Method,
		Mirror:      res.Mirror,
		Cache:       cacheStatus,
		DurationMs:  res.Duration.Milliseconds(),
	}

	if strings.Contains(res.ContentType, "html") {
		resp.Title = ExtractTitle(res.Body)
		resp.Fingerprint = simhash.Hex(simhash.FingerprintBytes(res.Body))
		if withLinks {
			base := res.FinalURL
			if base == "" {
				base = rawURL
			}
			resp.Links = ExtractLinks(res.Body, base)
		}
	}
	if len(res.Screenshot) > 0 {
		resp.Screenshot = base64.StdEncoding.EncodeToString(res.Screenshot)
	}
	return resp
}

// OptionsFrom maps an API request onto fetch options.
func OptionsFrom(req *models.PeelRequest) *fetch.Options {
	if req == nil {
		return &fetch.Options{}
	}
	return &fetch.Options{
		ForceBrowser:    req.ForceBrowser,
		TimeoutMs:       req.TimeoutMs,
		UserAgent:       req.UserAgent,
		Headers:         req.Headers,
		Cookies:         req.Cookies,
		WaitMs:          req.WaitMs,
		WaitForSelector: req.WaitForSelector,
		Actions:         req.Actions,
		Screenshot:      req.Screenshot,
		KeepPageOpen:    req.KeepPageOpen,
		Device:          req.Device,
		BlockResources:  req.BlockResources,
		Location:        req.Location,
		Stealth:         req.Stealth,
	}
}

// ErrorResponse renders a failed fetch in the API response shape.
func ErrorResponse(rawURL string, err error) *models.PeelResponse {
	kind := models.KindOf(err)
	msg := err.Error()
	if pe, ok := models.AsPeelError(err); ok {
		msg = pe.Message
	}
	return &models.PeelResponse{
		Success: false,
		URL:     rawURL,
		Error:   &models.ErrorEnvelope{Error: kind, Message: msg},
	}
}
