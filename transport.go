package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/goliatone/go-errors"
)

// doJSON performs one JSON round trip. Transport and decode failures come
// back as network-failure errors; non-2xx statuses are returned to the
// caller for mapping into the domain taxonomy.
func doJSON(ctx context.Context, client *http.Client, method, rawURL, token string, headers map[string]string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, errors.CategoryOperation, "unable to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryOperation, "unable to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		// the backend expects the raw credential, no scheme prefix
		req.Header.Set("Authorization", token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryOperation, "request failed").
			WithTextCode(TextCodeNetworkFailure)
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, errors.CategoryOperation, "unable to decode response").
				WithTextCode(TextCodeNetworkFailure)
		}
	}

	return resp.StatusCode, nil
}

func statusOK(code int) bool {
	return code >= 200 && code < 300
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
