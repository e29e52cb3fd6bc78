package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"lectern/internal/services"
	"lectern/internal/transport"
)

// Scores queries the academic records system for every graded course. The
// registrar serves a login redirect instead of JSON once its short-lived
// ticket expires, in which case one transparent relogin is attempted before
// giving up.
func (c *Client) Scores(ctx context.Context) ([]Score, error) {
	if err := c.requireLogin("get scores"); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf(
		"%s/jwglxt/cxdy/xscjcx_cxXscjIndex.html?doType=query&gnmkdm=N5083&su=%s",
		c.portal.RecordsBaseURL, url.QueryEscape(c.sess.Username()))
	form := url.Values{
		"xn":                     {""},
		"xq":                     {""},
		"zscjl":                  {""},
		"zscjr":                  {""},
		"_search":                {"false"},
		"nd":                     {strconv.FormatInt(c.now().UnixMilli(), 10)},
		"queryModel.showCount":   {"5000"},
		"queryModel.currentPage": {"1"},
		"queryModel.sortName":    {"xkkh"},
		"queryModel.sortOrder":   {"asc"},
		"time":                   {"0"},
	}

	var payload struct {
		Items []Score `json:"items"`
	}
	fetch := func() error {
		body, _, err := c.fetchBody(ctx, transport.PostForm(queryURL, form))
		if err != nil {
			return services.Wrap(services.ErrTransient, "get scores", "request failed", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return services.Wrap(services.ErrFormat, "get scores", "unexpected response body", err)
		}
		return nil
	}

	err := fetch()
	if err != nil && !services.Retryable(err) {
		// Non-JSON means the registrar bounced the ticket. Log in again once.
		if reloginErr := c.sess.Relogin(ctx); reloginErr != nil {
			return nil, reloginErr
		}
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// EvaluationDone reports whether the teaching evaluation has been completed.
// Scores stay hidden until it is.
func (c *Client) EvaluationDone(ctx context.Context) (bool, error) {
	if err := c.requireLogin("check evaluation"); err != nil {
		return false, err
	}

	checkURL := fmt.Sprintf(
		"%s/jwglxt/xtgl/index_cxMyCosJxpj.html?gnmkdm=N5083&su=%s",
		c.portal.RecordsBaseURL, url.QueryEscape(c.sess.Username()))

	var payload struct {
		Result string `json:"result"`
	}
	fetch := func() error {
		body, _, err := c.fetchBody(ctx, transport.PostForm(checkURL, nil))
		if err != nil {
			return services.Wrap(services.ErrTransient, "check evaluation", "request failed", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return services.Wrap(services.ErrFormat, "check evaluation", "unexpected response body", err)
		}
		return nil
	}

	err := fetch()
	if err != nil && !services.Retryable(err) {
		if reloginErr := c.sess.Relogin(ctx); reloginErr != nil {
			return false, reloginErr
		}
		err = fetch()
	}
	if err != nil {
		return false, err
	}
	return payload.Result == "1", nil
}
