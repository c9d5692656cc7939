package beacon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// FetchBlockHeaderToFile stages the raw block header JSON for a slot.
func (c *Client) FetchBlockHeaderToFile(ctx context.Context, slot phase0.Slot, path string) error {
	return c.fetchToFile(ctx, fmt.Sprintf("%s/eth/v1/beacon/headers/%d", c.baseURL, slot), path)
}

// FetchBlockToFile stages the raw signed block JSON for a slot.
func (c *Client) FetchBlockToFile(ctx context.Context, slot phase0.Slot, path string) error {
	return c.fetchToFile(ctx, fmt.Sprintf("%s/eth/v2/beacon/blocks/%d", c.baseURL, slot), path)
}

// FetchBeaconStateToFile stages the raw beacon state JSON for a slot. States
// run to gigabytes, so the response is streamed straight to disk.
func (c *Client) FetchBeaconStateToFile(ctx context.Context, slot phase0.Slot, path string) error {
	return c.fetchToFile(ctx, fmt.Sprintf("%s/eth/v2/debug/beacon/states/%d", c.baseURL, slot), path)
}

func (c *Client) fetchToFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	httpClient := &http.Client{}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("failed to fetch %s: status %d: %s", url, resp.StatusCode, string(body))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
