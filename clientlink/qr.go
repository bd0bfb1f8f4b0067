// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package clientlink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nurefexc/matrix-status/lib/netutil"
	"github.com/nurefexc/matrix-status/lib/version"
)

// QRServiceURL is the image endpoint QR codes are rendered by.
const QRServiceURL = "https://api.qrserver.com/v1/create-qr-code/"

// QRSize is the edge length in pixels of generated QR codes.
const QRSize = 180

// QRImageURL returns the URL of a PNG QR code encoding text.
func QRImageURL(text string) string {
	return qrImageURL(QRServiceURL, text)
}

func qrImageURL(service, text string) string {
	query := url.Values{}
	query.Set("size", fmt.Sprintf("%dx%d", QRSize, QRSize))
	query.Set("data", text)
	return service + "?" + query.Encode()
}

// FetchQR downloads the QR code image for text. Non-200 responses are
// errors. A cancelled ctx yields an error satisfying
// messaging.IsCancellation. A nil httpClient means http.DefaultClient.
func FetchQR(ctx context.Context, httpClient *http.Client, text string) ([]byte, error) {
	return fetchQR(ctx, httpClient, QRServiceURL, text)
}

func fetchQR(ctx context.Context, httpClient *http.Client, service, text string) ([]byte, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, qrImageURL(service, text), nil)
	if err != nil {
		return nil, fmt.Errorf("clientlink: creating QR request: %w", err)
	}
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("clientlink: fetching QR code: %w", err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadMedia(response.Body)
	if err != nil {
		return nil, fmt.Errorf("clientlink: reading QR code: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clientlink: QR service returned HTTP %d: %s",
			response.StatusCode, netutil.ErrorBody(body))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("clientlink: QR service returned an empty body")
	}
	return body, nil
}
