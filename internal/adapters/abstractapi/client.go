// Package abstractapi retrieves public holidays from the AbstractAPI
// holidays service.
package abstractapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"

	"github.com/intervalmon/intervalmon/internal/core/holidays"
)

const defaultBaseURL = "https://holidays.abstractapi.com/v1/"

// Client queries the holidays endpoint for a single country. It satisfies
// the engine's holiday provider interface.
type Client struct {
	baseURL  string
	apiKey   string
	country  string
	location *time.Location
	http     *http.Client
	logger   *logrus.Logger
}

// apiHoliday is the service's wire representation of one holiday.
type apiHoliday struct {
	Name        string `json:"name"`
	NameLocal   string `json:"name_local"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Country     string `json:"country"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Date        string `json:"date"`
}

// New creates a client. The location is the schedule's timezone, used to
// anchor each holiday's local midnight.
func New(apiKey, country string, location *time.Location, logger *logrus.Logger) *Client {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		country:  country,
		location: location,
		http:     &http.Client{Timeout: 2 * time.Minute},
		logger:   logger,
	}
}

// Holidays fetches the public holidays falling on the given local calendar
// date. Transient failures are retried a few times inside the call; the
// caller owns the longer day-level retry budget.
func (c *Client) Holidays(ctx context.Context, date time.Time) ([]holidays.Holiday, error) {
	query := url.Values{}
	query.Set("api_key", c.apiKey)
	query.Set("country", c.country)
	query.Set("year", strconv.Itoa(date.Year()))
	query.Set("month", strconv.Itoa(int(date.Month())))
	query.Set("day", strconv.Itoa(date.Day()))
	endpoint := c.baseURL + "?" + query.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("holiday request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("holiday service returned HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read holiday response: %v", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"attempt": n + 1,
				"country": c.country,
			}).WithError(err).Debug("Retrying holiday fetch")
		}),
	)
	if err != nil {
		return nil, err
	}

	var entries []apiHoliday
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode holiday response: %v", err)
	}

	result := make([]holidays.Holiday, 0, len(entries))
	for _, entry := range entries {
		holiday, err := holidays.New(entry.Name, entry.NameLocal, entry.Language,
			entry.Description, entry.Country, entry.Location, entry.Type, entry.Date, c.location)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"name": entry.Name,
				"date": entry.Date,
			}).WithError(err).Warn("Skipping holiday with unparseable date")
			continue
		}
		result = append(result, holiday)
	}

	c.logger.WithFields(logrus.Fields{
		"country": c.country,
		"date":    date.Format("2006-01-02"),
		"count":   len(result),
	}).Debug("Holidays retrieved")

	return result, nil
}
