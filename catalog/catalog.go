// Package catalog fetches the ordered list of reels.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/samber/lo"
)

// DefaultEndpoint serves a JSON array of master playlist URLs.
const DefaultEndpoint = "https://dev-api.wedzat.com/hub/master-playlists"

// maxBody caps how much of a catalog response is read.
const maxBody = 8 << 20

// FetchError is returned when the catalog cannot be loaded. Status is zero for transport failures.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog responded %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("catalog unreachable: %s", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrMalformed wraps responses that are not a JSON array of strings.
var ErrMalformed = errors.New("catalog response is not a list of urls")

// Fetch loads the catalog. Items are numbered "1".."n" in response order after blank entries are
// dropped.
func Fetch(ctx context.Context, endpoint string) ([]media.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("User-Agent", constant.UserAgent)
	req.Header.Set("Accept", "application/json")

	log.Infof("fetching catalog from %s", endpoint)
	res, err := network.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &FetchError{Status: res.StatusCode, Err: fmt.Errorf("GET %s", endpoint)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	items, err := Parse(body)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	log.Infof("catalog has %d items", len(items))
	return items, nil
}

// Parse turns a catalog body into items.
func Parse(body []byte) ([]media.Item, error) {
	var urls []string
	if err := json.Unmarshal(body, &urls); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	// Ids follow the catalog position, so blank entries are skipped without renumbering what
	// comes after them.
	return lo.FilterMap(urls, func(u string, i int) (media.Item, bool) {
		u = strings.TrimSpace(u)
		return media.Item{ID: strconv.Itoa(i + 1), URL: u}, u != ""
	}), nil
}
