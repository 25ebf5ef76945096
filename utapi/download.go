package utapi

import (
	"context"
	"fmt"

	"github.com/melbahja/got"
)

// DownloadFile looks up the URL of the file with the given key and downloads it to dest.
func (c *Client) DownloadFile(ctx context.Context, key, dest string) error {
	urls, err := c.GetFileURLs(ctx, []string{key})
	if err != nil {
		return err
	}

	var fileURL string
	for _, u := range urls.Data {
		if u.Key == key {
			fileURL = u.URL
			break
		}
	}
	if fileURL == "" {
		return fmt.Errorf("no URL returned for file %s", key)
	}

	c.logger.Debugf("Downloading %s from %s", key, fileURL)
	downloader := got.New()
	downloader.Client = c.httpClient.StandardClient()

	if err := downloader.Do(got.NewDownload(ctx, fileURL, dest)); err != nil {
		return cancelledOr(ctx, fmt.Errorf("download %s: %w", key, err))
	}
	return nil
}
