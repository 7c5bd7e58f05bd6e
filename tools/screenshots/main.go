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

// Command screenshots drives a headless browser against a throwaway
// server instance and saves the images used in the documentation.
package main

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
	"os"
	"path/filepath"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/playcall/backend"
)

var (
	chromeURL = flag.String("chrome-url", "", "The url of the remote debugging port")
	outputDir = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
)

const apiKey = "screenshots-api-key"

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}

	baseURL := startServer()
	log.Printf("Server started at %s", baseURL)

	ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), *chromeURL)
	defer cancel()

	ctx, cancel = chromedp.NewContext(ctx, chromedp.WithLogf(log.Printf))
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	log.Println("Starting screenshot generation...")

	if err := generateScreenshots(ctx, baseURL); err != nil {
		log.Fatalf("Failed to generate screenshots: %v", err)
	}

	log.Println("Screenshots generated successfully.")
}

func generateScreenshots(ctx context.Context, baseURL string) error {
	// Sign-in screen first, before the mock cookie exists.
	if err := chromedp.Run(ctx,
		chromedp.EmulateViewport(1280, 800),
		chromedp.Navigate(baseURL+"/"),
		chromedp.WaitVisible(`#auth-view`),
	); err != nil {
		return fmt.Errorf("sign-in screen: %w", err)
	}
	if err := captureScreenshot(ctx, "01-signin.png"); err != nil {
		return err
	}

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookie("mock_auth_user", "coach@example.com").
				WithDomain("localhost").
				WithPath("/").
				WithSecure(true).
				Do(ctx)
		}),
		chromedp.Navigate(baseURL+"/"),
		chromedp.WaitVisible(`#app-view`),
	); err != nil {
		return fmt.Errorf("app view: %w", err)
	}

	// Seed a small but realistic catalog.
	plays := []struct{ name, icon string }{
		{"Sweep Right", "run"},
		{"Counter", "run"},
		{"PA Boot", "play-action"},
		{"Screen Left", "screen"},
	}
	for _, p := range plays {
		if err := chromedp.Run(ctx,
			chromedp.SetValue(`#play-name`, p.name),
			chromedp.SetValue(`#play-icon`, p.icon),
			chromedp.Submit(`#play-form`),
			chromedp.Sleep(300*time.Millisecond),
		); err != nil {
			return fmt.Errorf("add play %s: %w", p.name, err)
		}
	}

	if err := chromedp.Run(ctx,
		chromedp.SetValue(`#game-opponent`, "Bears"),
		chromedp.SetValue(`#game-date`, "2026-09-04"),
		chromedp.Submit(`#game-form`),
		chromedp.WaitVisible(`#game-select option`),
	); err != nil {
		return fmt.Errorf("add game: %w", err)
	}
	if err := captureScreenshot(ctx, "02-play-grid.png"); err != nil {
		return err
	}

	calls := []struct {
		play  string
		yards string
	}{
		{"Sweep Right", "7"},
		{"Counter", "-3"},
		{"PA Boot", "24"},
		{"Sweep Right", "2"},
		{"Screen Left", "11"},
	}
	for _, c := range calls {
		expr := fmt.Sprintf(
			`[...document.querySelectorAll('.play-tile')].find((el) => el.querySelector('.name').textContent === %q).click()`, c.play)
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(expr, nil),
			chromedp.SetValue(`#call-yards`, c.yards),
			chromedp.Submit(`#call-form`),
			chromedp.Sleep(300*time.Millisecond),
		); err != nil {
			return fmt.Errorf("record call %s: %w", c.play, err)
		}
	}

	if err := chromedp.Run(ctx,
		chromedp.WaitVisible(`#recent-list li`),
		chromedp.Sleep(500*time.Millisecond),
	); err != nil {
		return fmt.Errorf("recent calls: %w", err)
	}
	if err := captureScreenshot(ctx, "03-recent-calls.png"); err != nil {
		return err
	}

	if err := chromedp.Run(ctx,
		chromedp.ScrollIntoView(`#stats-section`),
		chromedp.Sleep(300*time.Millisecond),
	); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return captureScreenshot(ctx, "04-stats.png")
}

func captureScreenshot(ctx context.Context, filename string) error {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture %s: %w", filename, err)
	}
	path := filepath.Join(*outputDir, filename)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return err
	}
	log.Printf("Saved %s", path)
	return nil
}

func startServer() string {
	cert, err := generateSelfSignedCert()
	if err != nil {
		log.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	dataDir, err := os.MkdirTemp("", "playcall_screenshots")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	s := storage.New(dataDir, nil)

	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(l.Addr().String())
	baseURL := fmt.Sprintf("https://localhost:%s", port)

	if _, err := backend.StartServer(backend.Options{
		Addr:        baseURL,
		Listener:    l,
		Cert:        cert,
		ServiceURL:  baseURL,
		APIKey:      apiKey,
		UseMockAuth: true,
		DataDir:     dataDir,
		Storage:     s,
	}); err != nil {
		log.Fatalf("Failed to start server: %v", err)
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
