package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type pageRequest struct {
	operation string
	segments  []string
	query     url.Values
}

// listPaged walks page=1,2,... and stops on the first empty page. Link headers
// are ignored, so a short or exactly-full final page still costs one more
// request that comes back empty.
func listPaged[T any](ctx context.Context, c *DataClient, request pageRequest) ([]T, EndpointStatus, CallMetadata, error) {
	var (
		items    []T
		metadata CallMetadata
	)

	for page := 1; ; page++ {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, request.segments...)
		query := url.Values{}
		for key, values := range request.query {
			query[key] = append([]string(nil), values...)
		}
		query.Set("per_page", strconv.Itoa(c.pageSize))
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return nil, "", metadata, fmt.Errorf("build %s request: %w", request.operation, err)
		}

		resp, callMetadata, err := c.requestClient.Do(req)
		metadata = metadata.Merge(callMetadata)
		if err != nil {
			return nil, "", metadata, fmt.Errorf("%s request failed: %w", request.operation, err)
		}
		if resp == nil {
			return nil, "", metadata, fmt.Errorf("%s request failed: nil response", request.operation)
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			return nil, status, metadata, nil
		}

		var payload []T
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return nil, "", metadata, fmt.Errorf("decode %s response: %w", request.operation, err)
		}
		if len(payload) == 0 {
			break
		}
		items = append(items, payload...)
	}

	return items, EndpointStatusOK, metadata, nil
}
