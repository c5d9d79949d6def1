// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package window

import (
	"context"
	"log/slog"

	"github.com/pkg/browser"
)

// Opener opens url in the user's web browser.
type Opener func(url string) error

func openInBrowser(url string) error {
	return browser.OpenURL(url)
}

// openURL reports whether the browser was opened. A failure only costs the user a click on the URL,
// so it is logged and not returned.
func openURL(ctx context.Context, opener Opener, url string) bool {
	if err := opener(url); err != nil {
		slog.WarnContext(ctx, "Unable to open the browser, open the URL manually", "url", url, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Browser opened", "url", url)

	return true
}
