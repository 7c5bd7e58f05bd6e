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
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/playcall/backend"
)

var withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")

const testAPIKey = "e2e-api-key"

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

func startTestServer(t *testing.T) string {
	cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	dataDir := t.TempDir()
	s := storage.New(dataDir, nil)

	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	_, port, _ := net.SplitHostPort(l.Addr().String())
	baseURL := fmt.Sprintf("https://localhost:%s", port)

	server, err := backend.StartServer(backend.Options{
		Addr:        baseURL,
		Listener:    l,
		Cert:        cert,
		ServiceURL:  baseURL,
		APIKey:      testAPIKey,
		UseMockAuth: true,
		Debug:       true,
		DataDir:     dataDir,
		Storage:     s,
	})
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sdCtx)
	})

	if err := waitForServer(baseURL, 5*time.Second); err != nil {
		t.Fatalf("Server failed to start: %v", err)
	}
	return baseURL
}

func generateSelfSignedCert() (*tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Hour * 24),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &cert, nil
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	client := http.Client{Transport: tr}
	req, err := http.NewRequestWithContext(ctx, "GET", url+"/api/config", nil)
	if err != nil {
		return err
	}

	for start := time.Now(); time.Since(start) < timeout; {
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			log.Printf("Server at %s is ready!", url)
			return nil
		}
		log.Printf("waitForServer(%q): %v", url, err)
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return fmt.Errorf("timeout waiting for server at %s", url)
}

func runStep(t *testing.T, ctx context.Context, description string, actions ...chromedp.Action) {
	t.Helper()
	t.Logf("STEP: %s", description)
	for i, action := range actions {
		if err := chromedp.Run(ctx, action); err != nil {
			captureScreenshot(ctx, "/demo/debug-failed-action.png")
			t.Fatalf("STEP FAILED: %s [Action#%d]: %v", description, i, err)
		}
	}
}

func newBrowserContext(t *testing.T) (context.Context, context.CancelFunc) {
	ctx, cancelAlloc := chromedp.NewRemoteAllocator(t.Context(), *withChromeDP)
	ctx, cancelCtx := chromedp.NewContext(ctx,
		chromedp.WithErrorf(log.Printf),
		chromedp.WithLogf(log.Printf),
	)
	ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				args := make([]string, len(ev.Args))
				for i, arg := range ev.Args {
					args[i] = string(arg.Value)
				}
				t.Logf("JS CONSOLE ERROR: %s", strings.Join(args, " "))
				t.Fail()
			}
		case *runtime.EventExceptionThrown:
			t.Logf("JS EXCEPTION: %s", ev.ExceptionDetails.Text)
			t.Fail()
		}
	})

	cancel := func() {
		cancelTimeout()
		cancelCtx()
		cancelAlloc()
	}
	return ctx, cancel
}

func TestPlayCallWorkflow(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}

	baseURL := startTestServer(t)
	ctx, cancel := newBrowserContext(t)
	defer cancel()

	var recentCount int
	var firstCall string

	runStep(t, ctx, "Sign in and load app",
		signInMockUser(baseURL, "coach@example.com"),
		chromedp.WaitVisible(`#app-view`),
	)

	runStep(t, ctx, "Create plays",
		addPlay("Sweep Right", "run"),
		addPlay("PA Boot", "play-action"),
		chromedp.WaitVisible(`.play-tile`),
	)

	runStep(t, ctx, "Create a game",
		addGame("Bears", "2026-09-04"),
		chromedp.WaitVisible(`#game-select option`),
	)

	runStep(t, ctx, "Record calls",
		selectPlay("Sweep Right"),
		recordCall("7"),
		recordCall("-3"),
		selectPlay("PA Boot"),
		recordCall("24"),
		chromedp.WaitVisible(`#recent-list li`),
	)

	runStep(t, ctx, "Verify recent calls",
		chromedp.Evaluate(`document.querySelectorAll('#recent-list li').length`, &recentCount),
		chromedp.Text(`#recent-list li:first-child`, &firstCall),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if recentCount != 3 {
				return fmt.Errorf("expected 3 recent calls, got %d", recentCount)
			}
			if !strings.Contains(firstCall, "PA Boot") || !strings.Contains(firstCall, "+24") {
				return fmt.Errorf("unexpected newest call: %q", firstCall)
			}
			return nil
		}),
	)

	VerifyStatsTable(t, ctx, "workflow_stats.txt")
}

func TestDeletePlayRemovesCalls(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}

	baseURL := startTestServer(t)
	ctx, cancel := newBrowserContext(t)
	defer cancel()

	var tileCount, recentCount int

	runStep(t, ctx, "Sign in and seed data",
		signInMockUser(baseURL, "coach@example.com"),
		chromedp.WaitVisible(`#app-view`),
		addPlay("Counter", "run"),
		addGame("Lions", "2026-10-12"),
		chromedp.WaitVisible(`#game-select option`),
		selectPlay("Counter"),
		recordCall("5"),
		chromedp.WaitVisible(`#recent-list li`),
	)

	runStep(t, ctx, "Delete the play",
		chromedp.Evaluate(`window.confirm = () => true`, nil),
		chromedp.Click(`.play-tile .delete`),
		chromedp.WaitNotPresent(`.play-tile`),
		chromedp.Sleep(500*time.Millisecond),
	)

	runStep(t, ctx, "Verify the calls are gone",
		chromedp.Evaluate(`document.querySelectorAll('.play-tile').length`, &tileCount),
		chromedp.Evaluate(`document.querySelectorAll('#recent-list li').length`, &recentCount),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if tileCount != 0 {
				return fmt.Errorf("expected 0 play tiles, got %d", tileCount)
			}
			if recentCount != 0 {
				return fmt.Errorf("expected 0 recent calls, got %d", recentCount)
			}
			return nil
		}),
	)
}

func TestChangeNoticeSync(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}

	baseURL := startTestServer(t)
	ctx, cancel := newBrowserContext(t)
	defer cancel()

	runStep(t, ctx, "Sign in",
		signInMockUser(baseURL, "coach@example.com"),
		chromedp.WaitVisible(`#app-view`),
	)

	// A second tab for the same user shares the change feed.
	tab2, cancelTab2 := chromedp.NewContext(ctx)
	defer cancelTab2()

	runStep(t, tab2, "Open a second tab",
		chromedp.Navigate(baseURL+"/"),
		chromedp.WaitVisible(`#app-view`),
	)

	runStep(t, ctx, "Add a play in the first tab",
		addPlay("Screen Left", "screen"),
		chromedp.WaitVisible(`.play-tile`),
	)

	runStep(t, tab2, "The second tab picks it up",
		chromedp.WaitVisible(`.play-tile`),
	)
}
