// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package e2e

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// signInMockUser plants the mock auth cookie and loads the app.
func signInMockUser(baseURL, email string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookie("mock_auth_user", email).
				WithDomain("localhost").
				WithPath("/").
				WithSecure(true).
				Do(ctx)
		}),
		chromedp.Navigate(baseURL + "/"),
	}
}

func addPlay(name, icon string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.WaitVisible(`#play-form`),
		chromedp.SetValue(`#play-name`, name),
		chromedp.SetValue(`#play-icon`, icon),
		chromedp.Submit(`#play-form`),
		waitForPlayTile(name),
	}
}

func waitForPlayTile(name string) chromedp.Action {
	expr := fmt.Sprintf(
		`[...document.querySelectorAll('.play-tile .name')].some((el) => el.textContent === %q)`, name)
	return chromedp.Poll(expr, nil,
		chromedp.WithPollingInterval(100*time.Millisecond),
		chromedp.WithPollingTimeout(5*time.Second))
}

func addGame(opponent, date string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.WaitVisible(`#game-form`),
		chromedp.SetValue(`#game-opponent`, opponent),
		chromedp.SetValue(`#game-date`, date),
		chromedp.Submit(`#game-form`),
	}
}

func selectPlay(name string) chromedp.Action {
	expr := fmt.Sprintf(
		`[...document.querySelectorAll('.play-tile')].find((el) => el.querySelector('.name').textContent === %q).click()`, name)
	return chromedp.Evaluate(expr, nil)
}

func recordCall(yards string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.SetValue(`#call-yards`, yards),
		chromedp.Submit(`#call-form`),
		chromedp.Sleep(200 * time.Millisecond),
	}
}

func captureScreenshot(ctx context.Context, filename string) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Printf("Failed to capture screenshot: %v", err)
		return
	}
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		log.Printf("Failed to write screenshot %s: %v", filename, err)
	}
}
